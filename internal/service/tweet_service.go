package service

import (
	"context"
	"regexp"
	"strings"

	"chirp/internal/models"
	"chirp/internal/repository"
	"chirp/internal/validation"
)

// TweetService provides tweet, like, and comment business logic.
type TweetService struct {
	tweetRepo     repository.TweetRepository
	commentRepo   repository.CommentRepository
	userRepo      repository.UserRepository
	notifications *NotificationService
	isAdmin       func(ctx context.Context, userID uint) (bool, error)
}

// CreateTweetInput is the payload for creating a tweet.
type CreateTweetInput struct {
	UserID   uint
	Text     string
	MediaURL string
}

// NewTweetService returns a new TweetService.
func NewTweetService(
	tweetRepo repository.TweetRepository,
	commentRepo repository.CommentRepository,
	userRepo repository.UserRepository,
	notifications *NotificationService,
	isAdmin func(ctx context.Context, userID uint) (bool, error),
) *TweetService {
	return &TweetService{
		tweetRepo:     tweetRepo,
		commentRepo:   commentRepo,
		userRepo:      userRepo,
		notifications: notifications,
		isAdmin:       isAdmin,
	}
}

// CreateTweet validates and stores a new tweet.
func (s *TweetService) CreateTweet(ctx context.Context, in CreateTweetInput) (*models.Tweet, error) {
	if err := validation.ValidateTweetText(in.Text); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	tweet := &models.Tweet{
		Text:     strings.TrimSpace(in.Text),
		MediaURL: in.MediaURL,
		UserID:   in.UserID,
	}
	if err := s.tweetRepo.Create(ctx, tweet); err != nil {
		return nil, err
	}

	s.fanOutMentions(ctx, in.UserID, tweet.Text, tweet.ID, nil)

	return s.tweetRepo.GetByID(ctx, tweet.ID, in.UserID)
}

// GetTweet returns a single tweet with counts and the viewer's liked flag.
func (s *TweetService) GetTweet(ctx context.Context, id uint, currentUserID uint) (*models.Tweet, error) {
	return s.tweetRepo.GetByID(ctx, id, currentUserID)
}

// ListTweets returns the global feed, newest first.
func (s *TweetService) ListTweets(ctx context.Context, limit, offset int, currentUserID uint) ([]*models.Tweet, error) {
	return s.tweetRepo.List(ctx, limit, offset, currentUserID)
}

// Timeline returns tweets by the user and everyone they follow, newest first.
func (s *TweetService) Timeline(ctx context.Context, userID uint, limit, offset int) ([]*models.Tweet, error) {
	return s.tweetRepo.Timeline(ctx, userID, limit, offset)
}

// GetUserTweets returns tweets authored by userID, newest first.
func (s *TweetService) GetUserTweets(ctx context.Context, userID uint, limit, offset int, currentUserID uint) ([]*models.Tweet, error) {
	return s.tweetRepo.GetByUserID(ctx, userID, limit, offset, currentUserID)
}

// SearchTweets returns tweets whose text matches the query, newest first.
func (s *TweetService) SearchTweets(ctx context.Context, query string, limit, offset int, currentUserID uint) ([]*models.Tweet, error) {
	if strings.TrimSpace(query) == "" {
		return nil, models.NewValidationError("Search query is required")
	}
	return s.tweetRepo.Search(ctx, query, limit, offset, currentUserID)
}

// DeleteTweet removes a tweet along with its likes and comments. Only the
// author or an admin may delete it.
func (s *TweetService) DeleteTweet(ctx context.Context, userID, tweetID uint) error {
	tweet, err := s.tweetRepo.GetByID(ctx, tweetID, userID)
	if err != nil {
		return err
	}

	if tweet.UserID != userID {
		admin, err := s.adminCheck(ctx, userID)
		if err != nil {
			return err
		}
		if !admin {
			return models.NewForbiddenError("You can only delete your own tweets")
		}
	}

	return s.tweetRepo.Delete(ctx, tweetID)
}

// Like records that userID liked the tweet, notifies the author, and returns
// the tweet's likers, most recent first. Liking twice fails with Conflict.
func (s *TweetService) Like(ctx context.Context, userID, tweetID uint) ([]uint, error) {
	tweet, err := s.tweetRepo.GetByID(ctx, tweetID, userID)
	if err != nil {
		return nil, err
	}

	if err := s.tweetRepo.Like(ctx, userID, tweetID); err != nil {
		return nil, err
	}

	id := tweetID
	s.notifications.Emit(ctx, &models.Notification{
		RecipientID: tweet.UserID,
		SenderID:    userID,
		Kind:        models.NotificationKindLike,
		TweetID:     &id,
	})

	return s.tweetRepo.GetLikerIDs(ctx, tweetID)
}

// Unlike removes userID's like and returns the remaining likers, most recent
// first. Unliking a tweet you never liked fails with Conflict. The original
// like notification is kept: it records something that really happened.
func (s *TweetService) Unlike(ctx context.Context, userID, tweetID uint) ([]uint, error) {
	if _, err := s.tweetRepo.GetByID(ctx, tweetID, userID); err != nil {
		return nil, err
	}

	if err := s.tweetRepo.Unlike(ctx, userID, tweetID); err != nil {
		return nil, err
	}

	return s.tweetRepo.GetLikerIDs(ctx, tweetID)
}

// GetLikers returns the IDs of users who liked the tweet, most recent first.
func (s *TweetService) GetLikers(ctx context.Context, tweetID uint, currentUserID uint) ([]uint, error) {
	if _, err := s.tweetRepo.GetByID(ctx, tweetID, currentUserID); err != nil {
		return nil, err
	}
	return s.tweetRepo.GetLikerIDs(ctx, tweetID)
}

// CreateComment validates and stores a comment on the tweet, notifies the
// tweet's author, and returns the tweet's refreshed comment list, newest
// first with author identities resolved.
func (s *TweetService) CreateComment(ctx context.Context, userID, tweetID uint, text string) ([]*models.Comment, error) {
	if err := validation.ValidateTweetText(text); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	tweet, err := s.tweetRepo.GetByID(ctx, tweetID, userID)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{
		Text:    strings.TrimSpace(text),
		UserID:  userID,
		TweetID: tweetID,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}

	tid := tweetID
	cid := comment.ID
	s.notifications.Emit(ctx, &models.Notification{
		RecipientID: tweet.UserID,
		SenderID:    userID,
		Kind:        models.NotificationKindComment,
		TweetID:     &tid,
		CommentID:   &cid,
	})

	s.fanOutMentions(ctx, userID, comment.Text, tweetID, &cid)

	return s.commentRepo.GetByTweetID(ctx, tweetID, 0, 0)
}

// GetComments returns the tweet's comments, newest first.
func (s *TweetService) GetComments(ctx context.Context, tweetID uint, limit, offset int) ([]*models.Comment, error) {
	if _, err := s.tweetRepo.GetByID(ctx, tweetID, 0); err != nil {
		return nil, err
	}
	return s.commentRepo.GetByTweetID(ctx, tweetID, limit, offset)
}

// DeleteComment removes a comment and returns the tweet's refreshed comment
// list. Only the comment's author or an admin may delete it. The tweet is
// resolved before the comment so a missing tweet and a missing comment report
// distinct not-found errors.
func (s *TweetService) DeleteComment(ctx context.Context, userID, tweetID, commentID uint) ([]*models.Comment, error) {
	if _, err := s.tweetRepo.GetByID(ctx, tweetID, userID); err != nil {
		return nil, err
	}

	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment.TweetID != tweetID {
		return nil, models.NewNotFoundError("Comment", commentID)
	}

	if comment.UserID != userID {
		admin, err := s.adminCheck(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !admin {
			return nil, models.NewForbiddenError("You can only delete your own comments")
		}
	}

	if err := s.commentRepo.Delete(ctx, commentID); err != nil {
		return nil, err
	}

	return s.commentRepo.GetByTweetID(ctx, tweetID, 0, 0)
}

var mentionPattern = regexp.MustCompile(`@([A-Za-z0-9_-]{3,30})`)

// mentionedUsernames extracts unique @username candidates in order of first
// appearance. Whether a candidate names a real account is decided by lookup.
func mentionedUsernames(text string) []string {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		name := m[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// fanOutMentions notifies every existing user @-mentioned in text. Unknown
// usernames are ignored; self-mentions are dropped by Emit.
func (s *TweetService) fanOutMentions(ctx context.Context, senderID uint, text string, tweetID uint, commentID *uint) {
	if s.userRepo == nil {
		return
	}
	for _, username := range mentionedUsernames(text) {
		user, err := s.userRepo.GetByUsername(ctx, username)
		if err != nil || user == nil {
			continue
		}
		tid := tweetID
		s.notifications.Emit(ctx, &models.Notification{
			RecipientID: user.ID,
			SenderID:    senderID,
			Kind:        models.NotificationKindMention,
			TweetID:     &tid,
			CommentID:   commentID,
		})
	}
}

func (s *TweetService) adminCheck(ctx context.Context, userID uint) (bool, error) {
	if s.isAdmin == nil {
		return false, nil
	}
	return s.isAdmin(ctx, userID)
}
