package service

import (
	"context"

	"chirp/internal/models"
	"chirp/internal/repository"
)

// GraphService provides follow-edge business logic.
type GraphService struct {
	followRepo    repository.FollowRepository
	userRepo      repository.UserRepository
	notifications *NotificationService
}

// NewGraphService returns a new GraphService.
func NewGraphService(followRepo repository.FollowRepository, userRepo repository.UserRepository, notifications *NotificationService) *GraphService {
	return &GraphService{
		followRepo:    followRepo,
		userRepo:      userRepo,
		notifications: notifications,
	}
}

// Follow creates a follow edge from follower to followee and notifies the
// followee. Following yourself or someone you already follow fails.
func (s *GraphService) Follow(ctx context.Context, followerID, followeeID uint) error {
	if followerID == followeeID {
		return models.NewInvalidOperationError("cannot follow yourself")
	}

	if _, err := s.userRepo.GetByID(ctx, followeeID); err != nil {
		return err
	}

	exists, err := s.followRepo.Exists(ctx, followerID, followeeID)
	if err != nil {
		return err
	}
	if exists {
		return models.NewConflictError("already following")
	}

	follow := &models.Follow{
		FollowerID: followerID,
		FolloweeID: followeeID,
	}
	// A concurrent duplicate loses on the unique index and comes back as
	// Conflict from the repository.
	if err := s.followRepo.Create(ctx, follow); err != nil {
		return err
	}

	s.notifications.Emit(ctx, &models.Notification{
		RecipientID: followeeID,
		SenderID:    followerID,
		Kind:        models.NotificationKindFollow,
	})

	return nil
}

// Unfollow removes the follow edge from follower to followee.
func (s *GraphService) Unfollow(ctx context.Context, followerID, followeeID uint) error {
	if followerID == followeeID {
		return models.NewInvalidOperationError("cannot unfollow yourself")
	}

	if _, err := s.userRepo.GetByID(ctx, followeeID); err != nil {
		return err
	}

	return s.followRepo.Delete(ctx, followerID, followeeID)
}

// IsFollowing reports whether follower currently follows followee.
func (s *GraphService) IsFollowing(ctx context.Context, followerID, followeeID uint) (bool, error) {
	return s.followRepo.Exists(ctx, followerID, followeeID)
}

// GetFollowers returns the users following userID, most recent first.
func (s *GraphService) GetFollowers(ctx context.Context, userID uint, limit, offset int) ([]models.User, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.followRepo.GetFollowers(ctx, userID, limit, offset)
}

// GetFollowing returns the users userID follows, most recent first.
func (s *GraphService) GetFollowing(ctx context.Context, userID uint, limit, offset int) ([]models.User, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.followRepo.GetFollowing(ctx, userID, limit, offset)
}
