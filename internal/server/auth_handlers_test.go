package server

import (
	"net/http"
	"testing"

	"chirp/internal/featureflags"
	"chirp/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignup(t *testing.T) {
	s := newTestServer(t)
	app := newTestApp(t, s)

	signup := func(name, username, email, password string) *http.Response {
		resp, err := app.Test(jsonRequest(http.MethodPost, "/api/auth/signup", map[string]string{
			"name":     name,
			"username": username,
			"email":    email,
			"password": password,
		}, ""))
		require.NoError(t, err)
		return resp
	}

	t.Run("Success", func(t *testing.T) {
		resp := signup("Ada Finch", "ada", "ada@example.com", "SecurePass12!@")
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.NotEmpty(t, body["token"])
		user := body["user"].(map[string]any)
		assert.Equal(t, "ada", user["username"])
		// Password hash must never leak in responses.
		assert.NotContains(t, user, "password")
	})

	t.Run("Duplicate Email", func(t *testing.T) {
		resp := signup("Ada Again", "ada2", "ada@example.com", "SecurePass12!@")
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("Duplicate Username", func(t *testing.T) {
		resp := signup("Ada Again", "ada", "ada-other@example.com", "SecurePass12!@")
		assert.Equal(t, http.StatusConflict, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, "CONFLICT", body["code"])
		assert.Contains(t, body["error"].(string), "Username")
	})

	t.Run("Weak Password", func(t *testing.T) {
		resp := signup("Sam Wren", "wren", "wren@example.com", "short")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("Bad Username", func(t *testing.T) {
		resp := signup("Sam Wren", "_wren", "wren@example.com", "SecurePass12!@")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("Missing Fields", func(t *testing.T) {
		resp := signup("", "", "", "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		_ = resp.Body.Close()
	})
}

func TestSignupWelcomeNotification(t *testing.T) {
	s := newTestServer(t)
	s.flags = featureflags.NewManager("welcome_notification=on")
	app := newTestApp(t, s)

	// The first account plays the root admin and does not greet itself.
	root, _ := createTestUser(t, s, "chirp_root", "root@chirp.local")
	require.EqualValues(t, 1, root.ID)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/auth/signup", map[string]string{
		"name":     "Ada Finch",
		"username": "ada",
		"email":    "ada@example.com",
		"password": "SecurePass12!@",
	}, ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	var got []models.Notification
	require.NoError(t, s.db.Find(&got).Error)
	require.Len(t, got, 1)
	assert.Equal(t, models.NotificationKindWelcome, got[0].Kind)
	assert.Equal(t, root.ID, got[0].SenderID)

	var ada models.User
	require.NoError(t, s.db.Where("username = ?", "ada").First(&ada).Error)
	assert.Equal(t, ada.ID, got[0].RecipientID)
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	app := newTestApp(t, s)
	createTestUser(t, s, "ada", "ada@example.com")

	login := func(email, password string) *http.Response {
		resp, err := app.Test(jsonRequest(http.MethodPost, "/api/auth/login", map[string]string{
			"email":    email,
			"password": password,
		}, ""))
		require.NoError(t, err)
		return resp
	}

	t.Run("Success", func(t *testing.T) {
		resp := login("ada@example.com", "SecurePass12!@")
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.NotEmpty(t, body["token"])
	})

	t.Run("Wrong Password", func(t *testing.T) {
		resp := login("ada@example.com", "WrongPass12!@")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("Unknown Email", func(t *testing.T) {
		resp := login("nobody@example.com", "SecurePass12!@")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		_ = resp.Body.Close()
	})
}

func TestAuthMe(t *testing.T) {
	s := newTestServer(t)
	app := newTestApp(t, s)
	user, token := createTestUser(t, s, "ada", "ada@example.com")

	resp, err := app.Test(jsonRequest(http.MethodGet, "/api/auth/me", nil, token))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.EqualValues(t, user.ID, body["id"])
	assert.Equal(t, "ada", body["username"])

	resp, err = app.Test(jsonRequest(http.MethodGet, "/api/auth/me", nil, ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestRefreshIssuesNewToken(t *testing.T) {
	s := newTestServer(t)
	app := newTestApp(t, s)
	_, token := createTestUser(t, s, "ada", "ada@example.com")

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/auth/refresh", nil, token))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	fresh, ok := body["token"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, fresh)
	assert.NotEqual(t, token, fresh)
}
