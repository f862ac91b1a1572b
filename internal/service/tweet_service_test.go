package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"chirp/internal/models"
)

type tweetRepoStub struct {
	createFn      func(context.Context, *models.Tweet) error
	getByIDFn     func(context.Context, uint, uint) (*models.Tweet, error)
	getByUserIDFn func(context.Context, uint, int, int, uint) ([]*models.Tweet, error)
	listFn        func(context.Context, int, int, uint) ([]*models.Tweet, error)
	timelineFn    func(context.Context, uint, int, int) ([]*models.Tweet, error)
	searchFn      func(context.Context, string, int, int, uint) ([]*models.Tweet, error)
	deleteFn      func(context.Context, uint) error
	likeFn        func(context.Context, uint, uint) error
	unlikeFn      func(context.Context, uint, uint) error
	isLikedFn     func(context.Context, uint, uint) (bool, error)
	getLikerIDsFn func(context.Context, uint) ([]uint, error)
}

func (s *tweetRepoStub) Create(ctx context.Context, tweet *models.Tweet) error {
	return s.createFn(ctx, tweet)
}
func (s *tweetRepoStub) GetByID(ctx context.Context, id uint, currentUserID uint) (*models.Tweet, error) {
	return s.getByIDFn(ctx, id, currentUserID)
}
func (s *tweetRepoStub) GetByUserID(ctx context.Context, userID uint, limit, offset int, currentUserID uint) ([]*models.Tweet, error) {
	return s.getByUserIDFn(ctx, userID, limit, offset, currentUserID)
}
func (s *tweetRepoStub) List(ctx context.Context, limit, offset int, currentUserID uint) ([]*models.Tweet, error) {
	return s.listFn(ctx, limit, offset, currentUserID)
}
func (s *tweetRepoStub) Timeline(ctx context.Context, userID uint, limit, offset int) ([]*models.Tweet, error) {
	return s.timelineFn(ctx, userID, limit, offset)
}
func (s *tweetRepoStub) Search(ctx context.Context, query string, limit, offset int, currentUserID uint) ([]*models.Tweet, error) {
	return s.searchFn(ctx, query, limit, offset, currentUserID)
}
func (s *tweetRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *tweetRepoStub) Like(ctx context.Context, userID, tweetID uint) error {
	return s.likeFn(ctx, userID, tweetID)
}
func (s *tweetRepoStub) Unlike(ctx context.Context, userID, tweetID uint) error {
	return s.unlikeFn(ctx, userID, tweetID)
}
func (s *tweetRepoStub) IsLiked(ctx context.Context, userID, tweetID uint) (bool, error) {
	return s.isLikedFn(ctx, userID, tweetID)
}
func (s *tweetRepoStub) GetLikerIDs(ctx context.Context, tweetID uint) ([]uint, error) {
	return s.getLikerIDsFn(ctx, tweetID)
}

func noopTweetRepo() *tweetRepoStub {
	return &tweetRepoStub{
		createFn: func(context.Context, *models.Tweet) error { return nil },
		getByIDFn: func(_ context.Context, id uint, _ uint) (*models.Tweet, error) {
			return &models.Tweet{ID: id, UserID: 42, Text: "hello"}, nil
		},
		getByUserIDFn: func(context.Context, uint, int, int, uint) ([]*models.Tweet, error) { return nil, nil },
		listFn:        func(context.Context, int, int, uint) ([]*models.Tweet, error) { return nil, nil },
		timelineFn:    func(context.Context, uint, int, int) ([]*models.Tweet, error) { return nil, nil },
		searchFn:      func(context.Context, string, int, int, uint) ([]*models.Tweet, error) { return nil, nil },
		deleteFn:      func(context.Context, uint) error { return nil },
		likeFn:        func(context.Context, uint, uint) error { return nil },
		unlikeFn:      func(context.Context, uint, uint) error { return nil },
		isLikedFn:     func(context.Context, uint, uint) (bool, error) { return false, nil },
		getLikerIDsFn: func(context.Context, uint) ([]uint, error) { return nil, nil },
	}
}

type commentRepoStub struct {
	createFn       func(context.Context, *models.Comment) error
	getByIDFn      func(context.Context, uint) (*models.Comment, error)
	getByTweetIDFn func(context.Context, uint, int, int) ([]*models.Comment, error)
	deleteFn       func(context.Context, uint) error
}

func (s *commentRepoStub) Create(ctx context.Context, comment *models.Comment) error {
	return s.createFn(ctx, comment)
}
func (s *commentRepoStub) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	return s.getByIDFn(ctx, id)
}
func (s *commentRepoStub) GetByTweetID(ctx context.Context, tweetID uint, limit, offset int) ([]*models.Comment, error) {
	return s.getByTweetIDFn(ctx, tweetID, limit, offset)
}
func (s *commentRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}

func noopCommentRepo() *commentRepoStub {
	return &commentRepoStub{
		createFn:       func(context.Context, *models.Comment) error { return nil },
		getByIDFn:      func(context.Context, uint) (*models.Comment, error) { return &models.Comment{}, nil },
		getByTweetIDFn: func(context.Context, uint, int, int) ([]*models.Comment, error) { return nil, nil },
		deleteFn:       func(context.Context, uint) error { return nil },
	}
}

func newTestTweetService(tweetRepo *tweetRepoStub, commentRepo *commentRepoStub, notificationRepo *notificationRepoStub, isAdmin func(context.Context, uint) (bool, error)) *TweetService {
	return NewTweetService(tweetRepo, commentRepo, nil, NewNotificationService(notificationRepo, nil), isAdmin)
}

func TestTweetServiceCreateTweetBlankText(t *testing.T) {
	svc := newTestTweetService(noopTweetRepo(), noopCommentRepo(), noopNotificationRepo(), nil)
	_, err := svc.CreateTweet(context.Background(), CreateTweetInput{UserID: 1, Text: "   "})
	var appErr *models.AppError
	if !errors.As(err, &appErr) || appErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected validation app error, got %#v", err)
	}
}

func TestTweetServiceCreateTweetTooLong(t *testing.T) {
	svc := newTestTweetService(noopTweetRepo(), noopCommentRepo(), noopNotificationRepo(), nil)
	_, err := svc.CreateTweet(context.Background(), CreateTweetInput{UserID: 1, Text: strings.Repeat("a", 281)})
	var appErr *models.AppError
	if !errors.As(err, &appErr) || appErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected validation app error, got %#v", err)
	}
}

func TestTweetServiceCreateTweetExactLimit(t *testing.T) {
	var stored *models.Tweet
	tweetRepo := noopTweetRepo()
	tweetRepo.createFn = func(_ context.Context, tw *models.Tweet) error {
		tw.ID = 7
		stored = tw
		return nil
	}

	svc := newTestTweetService(tweetRepo, noopCommentRepo(), noopNotificationRepo(), nil)
	text := strings.Repeat("x", 280)
	if _, err := svc.CreateTweet(context.Background(), CreateTweetInput{UserID: 1, Text: text}); err != nil {
		t.Fatalf("create tweet: %v", err)
	}
	if stored == nil || stored.Text != text {
		t.Fatal("expected 280-rune tweet to be stored unchanged")
	}
}

func TestTweetServiceSearchBlankQuery(t *testing.T) {
	svc := newTestTweetService(noopTweetRepo(), noopCommentRepo(), noopNotificationRepo(), nil)
	_, err := svc.SearchTweets(context.Background(), "  ", 20, 0, 0)
	var appErr *models.AppError
	if !errors.As(err, &appErr) || appErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected validation app error, got %#v", err)
	}
}

func TestTweetServiceDeleteTweetNotAuthor(t *testing.T) {
	svc := newTestTweetService(noopTweetRepo(), noopCommentRepo(), noopNotificationRepo(), nil)
	err := svc.DeleteTweet(context.Background(), 1, 5)
	var appErr *models.AppError
	if !errors.As(err, &appErr) || appErr.Code != "FORBIDDEN" {
		t.Fatalf("expected forbidden app error, got %#v", err)
	}
}

func TestTweetServiceDeleteTweetAdminOverride(t *testing.T) {
	deleted := false
	tweetRepo := noopTweetRepo()
	tweetRepo.deleteFn = func(context.Context, uint) error {
		deleted = true
		return nil
	}
	isAdmin := func(context.Context, uint) (bool, error) { return true, nil }

	svc := newTestTweetService(tweetRepo, noopCommentRepo(), noopNotificationRepo(), isAdmin)
	if err := svc.DeleteTweet(context.Background(), 1, 5); err != nil {
		t.Fatalf("delete tweet: %v", err)
	}
	if !deleted {
		t.Fatal("expected tweet to be deleted")
	}
}

func TestTweetServiceLikeEmitsNotificationAndReturnsLikers(t *testing.T) {
	var emitted *models.Notification
	notificationRepo := noopNotificationRepo()
	notificationRepo.createFn = func(_ context.Context, n *models.Notification) error {
		emitted = n
		return nil
	}

	tweetRepo := noopTweetRepo()
	tweetRepo.getLikerIDsFn = func(context.Context, uint) ([]uint, error) {
		return []uint{9, 3, 1}, nil
	}

	svc := newTestTweetService(tweetRepo, noopCommentRepo(), notificationRepo, nil)
	likers, err := svc.Like(context.Background(), 9, 5)
	if err != nil {
		t.Fatalf("like: %v", err)
	}

	if len(likers) != 3 || likers[0] != 9 {
		t.Fatalf("expected likers newest first, got %v", likers)
	}
	if emitted == nil || emitted.Kind != models.NotificationKindLike {
		t.Fatalf("expected like notification, got %#v", emitted)
	}
	if emitted.RecipientID != 42 || emitted.SenderID != 9 {
		t.Fatalf("unexpected notification addressing: %+v", emitted)
	}
	if emitted.TweetID == nil || *emitted.TweetID != 5 {
		t.Fatalf("expected tweet reference on notification, got %+v", emitted)
	}
}

func TestTweetServiceLikeOwnTweetStoresNoNotification(t *testing.T) {
	created := 0
	notificationRepo := noopNotificationRepo()
	notificationRepo.createFn = func(context.Context, *models.Notification) error {
		created++
		return nil
	}

	// author likes their own tweet
	svc := newTestTweetService(noopTweetRepo(), noopCommentRepo(), notificationRepo, nil)
	if _, err := svc.Like(context.Background(), 42, 5); err != nil {
		t.Fatalf("like: %v", err)
	}
	if created != 0 {
		t.Fatalf("expected no self notification, got %d", created)
	}
}

func TestTweetServiceLikeDuplicateConflict(t *testing.T) {
	tweetRepo := noopTweetRepo()
	tweetRepo.likeFn = func(context.Context, uint, uint) error {
		return models.NewConflictError("already liked")
	}

	svc := newTestTweetService(tweetRepo, noopCommentRepo(), noopNotificationRepo(), nil)
	_, err := svc.Like(context.Background(), 1, 5)
	var appErr *models.AppError
	if !errors.As(err, &appErr) || appErr.Code != "CONFLICT" {
		t.Fatalf("expected conflict app error, got %#v", err)
	}
}

func TestTweetServiceUnlikeKeepsNotificationSilent(t *testing.T) {
	created := 0
	notificationRepo := noopNotificationRepo()
	notificationRepo.createFn = func(context.Context, *models.Notification) error {
		created++
		return nil
	}

	svc := newTestTweetService(noopTweetRepo(), noopCommentRepo(), notificationRepo, nil)
	if _, err := svc.Unlike(context.Background(), 1, 5); err != nil {
		t.Fatalf("unlike: %v", err)
	}
	if created != 0 {
		t.Fatalf("expected no notifications on unlike, got %d", created)
	}
}

func TestTweetServiceCommentEmitsNotification(t *testing.T) {
	var emitted *models.Notification
	notificationRepo := noopNotificationRepo()
	notificationRepo.createFn = func(_ context.Context, n *models.Notification) error {
		emitted = n
		return nil
	}

	commentRepo := noopCommentRepo()
	commentRepo.createFn = func(_ context.Context, c *models.Comment) error {
		c.ID = 33
		return nil
	}
	commentRepo.getByTweetIDFn = func(_ context.Context, tweetID uint, _, _ int) ([]*models.Comment, error) {
		return []*models.Comment{{ID: 33, TweetID: tweetID, UserID: 9, Text: "nice tweet"}}, nil
	}

	svc := newTestTweetService(noopTweetRepo(), commentRepo, notificationRepo, nil)
	comments, err := svc.CreateComment(context.Background(), 9, 5, "nice tweet")
	if err != nil {
		t.Fatalf("create comment: %v", err)
	}
	if len(comments) != 1 || comments[0].ID != 33 {
		t.Fatalf("expected refreshed comment list, got %+v", comments)
	}

	if emitted == nil || emitted.Kind != models.NotificationKindComment {
		t.Fatalf("expected comment notification, got %#v", emitted)
	}
	if emitted.CommentID == nil || *emitted.CommentID != 33 {
		t.Fatalf("expected comment reference on notification, got %+v", emitted)
	}
}

func TestTweetServiceDeleteCommentMissingTweet(t *testing.T) {
	commentLookups := 0
	commentRepo := noopCommentRepo()
	commentRepo.getByIDFn = func(context.Context, uint) (*models.Comment, error) {
		commentLookups++
		return nil, models.NewNotFoundError("Comment", 33)
	}

	tweetRepo := noopTweetRepo()
	tweetRepo.getByIDFn = func(_ context.Context, id uint, _ uint) (*models.Tweet, error) {
		return nil, models.NewNotFoundError("Tweet", id)
	}

	svc := newTestTweetService(tweetRepo, commentRepo, noopNotificationRepo(), nil)
	_, err := svc.DeleteComment(context.Background(), 9, 5, 33)
	var appErr *models.AppError
	if !errors.As(err, &appErr) || appErr.Code != "NOT_FOUND" {
		t.Fatalf("expected not-found app error, got %#v", err)
	}
	if !strings.Contains(appErr.Message, "Tweet") {
		t.Fatalf("expected the missing tweet to be reported, got %q", appErr.Message)
	}
	if commentLookups != 0 {
		t.Fatal("expected no comment lookup when the tweet is missing")
	}
}

func TestTweetServiceDeleteCommentWrongTweet(t *testing.T) {
	commentRepo := noopCommentRepo()
	commentRepo.getByIDFn = func(context.Context, uint) (*models.Comment, error) {
		return &models.Comment{ID: 33, TweetID: 8, UserID: 9}, nil
	}

	svc := newTestTweetService(noopTweetRepo(), commentRepo, noopNotificationRepo(), nil)
	_, err := svc.DeleteComment(context.Background(), 9, 5, 33)
	var appErr *models.AppError
	if !errors.As(err, &appErr) || appErr.Code != "NOT_FOUND" {
		t.Fatalf("expected not-found app error, got %#v", err)
	}
	if !strings.Contains(appErr.Message, "Comment") {
		t.Fatalf("expected the missing comment to be reported, got %q", appErr.Message)
	}
}

func TestTweetServiceDeleteCommentAuthorization(t *testing.T) {
	cases := []struct {
		name    string
		userID  uint
		isAdmin bool
		wantErr string
	}{
		{name: "comment author", userID: 9},
		{name: "admin", userID: 7, isAdmin: true},
		{name: "tweet author", userID: 42, wantErr: "FORBIDDEN"},
		{name: "stranger", userID: 7, wantErr: "FORBIDDEN"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			deleted := false
			commentRepo := noopCommentRepo()
			commentRepo.getByIDFn = func(context.Context, uint) (*models.Comment, error) {
				return &models.Comment{ID: 33, TweetID: 5, UserID: 9}, nil
			}
			commentRepo.deleteFn = func(context.Context, uint) error {
				deleted = true
				return nil
			}
			isAdmin := func(context.Context, uint) (bool, error) { return tc.isAdmin, nil }

			svc := newTestTweetService(noopTweetRepo(), commentRepo, noopNotificationRepo(), isAdmin)
			_, err := svc.DeleteComment(context.Background(), tc.userID, 5, 33)

			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("delete comment: %v", err)
				}
				if !deleted {
					t.Fatal("expected comment to be deleted")
				}
				return
			}
			var appErr *models.AppError
			if !errors.As(err, &appErr) || appErr.Code != tc.wantErr {
				t.Fatalf("expected %s app error, got %#v", tc.wantErr, err)
			}
			if deleted {
				t.Fatal("expected comment to survive")
			}
		})
	}
}

func TestMentionedUsernames(t *testing.T) {
	cases := []struct {
		text string
		want []string
	}{
		{"hello @wren how are you", []string{"wren"}},
		{"@ada @wren @ada", []string{"ada", "wren"}},
		{"email me at user@example.com", []string{"example"}},
		{"no mentions here", nil},
		{"@ab too short", nil},
	}

	for _, tc := range cases {
		got := mentionedUsernames(tc.text)
		if len(got) != len(tc.want) {
			t.Fatalf("%q: expected %v, got %v", tc.text, tc.want, got)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("%q: expected %v, got %v", tc.text, tc.want, got)
			}
		}
	}
}
