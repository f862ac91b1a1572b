package server

import (
	"fmt"
	"net/http"
	"testing"

	"chirp/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationFlows(t *testing.T) {
	s := newTestServer(t)
	app := newTestApp(t, s)
	recipient, token := createTestUser(t, s, "ada", "ada@example.com")
	sender, _ := createTestUser(t, s, "wren", "wren@example.com")

	var ids []uint
	for i := 0; i < 3; i++ {
		n := &models.Notification{
			RecipientID: recipient.ID,
			SenderID:    sender.ID,
			Kind:        models.NotificationKindFollow,
		}
		require.NoError(t, s.db.Create(n).Error)
		ids = append(ids, n.ID)
	}

	t.Run("List", func(t *testing.T) {
		resp, err := app.Test(jsonRequest(http.MethodGet, "/api/notifications/", nil, token))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		list := decodeList(t, resp)
		require.Len(t, list, 3)
		assert.Equal(t, "wren", list[0]["sender"].(map[string]any)["username"])
	})

	t.Run("Unread Count", func(t *testing.T) {
		resp, err := app.Test(jsonRequest(http.MethodGet, "/api/notifications/unread-count", nil, token))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.EqualValues(t, 3, body["unread"])
	})

	t.Run("Mark One Read", func(t *testing.T) {
		url := fmt.Sprintf("/api/notifications/%d/read", ids[0])
		resp, err := app.Test(jsonRequest(http.MethodPost, url, nil, token))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		// The response is the updated record, not a bare acknowledgement.
		body := decodeBody(t, resp)
		assert.EqualValues(t, ids[0], body["id"])
		assert.Equal(t, true, body["read"])

		// A second call is still OK.
		resp, err = app.Test(jsonRequest(http.MethodPost, url, nil, token))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("Mark All Read", func(t *testing.T) {
		resp, err := app.Test(jsonRequest(http.MethodPost, "/api/notifications/read-all", nil, token))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()

		resp, err = app.Test(jsonRequest(http.MethodGet, "/api/notifications/unread-count", nil, token))
		require.NoError(t, err)
		body := decodeBody(t, resp)
		assert.EqualValues(t, 0, body["unread"])
	})

	t.Run("Delete", func(t *testing.T) {
		url := fmt.Sprintf("/api/notifications/%d", ids[1])
		resp, err := app.Test(jsonRequest(http.MethodDelete, url, nil, token))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()

		var count int64
		require.NoError(t, s.db.Model(&models.Notification{}).Where("id = ?", ids[1]).Count(&count).Error)
		assert.EqualValues(t, 0, count)
	})
}

func TestNotificationOwnership(t *testing.T) {
	s := newTestServer(t)
	app := newTestApp(t, s)
	recipient, _ := createTestUser(t, s, "ada", "ada@example.com")
	sender, senderToken := createTestUser(t, s, "wren", "wren@example.com")

	n := &models.Notification{
		RecipientID: recipient.ID,
		SenderID:    sender.ID,
		Kind:        models.NotificationKindFollow,
	}
	require.NoError(t, s.db.Create(n).Error)

	// The sender cannot read or delete the recipient's notification.
	resp, err := app.Test(jsonRequest(http.MethodPost, fmt.Sprintf("/api/notifications/%d/read", n.ID), nil, senderToken))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = app.Test(jsonRequest(http.MethodDelete, fmt.Sprintf("/api/notifications/%d", n.ID), nil, senderToken))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()
}
