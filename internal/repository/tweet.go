// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"
	"strings"

	"chirp/internal/cache"
	"chirp/internal/models"
	"chirp/internal/observability"

	"gorm.io/gorm"
)

// TweetRepository defines the interface for tweet data operations
type TweetRepository interface {
	Create(ctx context.Context, tweet *models.Tweet) error
	GetByID(ctx context.Context, id uint, currentUserID uint) (*models.Tweet, error)
	GetByUserID(ctx context.Context, userID uint, limit, offset int, currentUserID uint) ([]*models.Tweet, error)
	List(ctx context.Context, limit, offset int, currentUserID uint) ([]*models.Tweet, error)
	Timeline(ctx context.Context, userID uint, limit, offset int) ([]*models.Tweet, error)
	Search(ctx context.Context, query string, limit, offset int, currentUserID uint) ([]*models.Tweet, error)
	Delete(ctx context.Context, id uint) error
	Like(ctx context.Context, userID, tweetID uint) error
	Unlike(ctx context.Context, userID, tweetID uint) error
	IsLiked(ctx context.Context, userID, tweetID uint) (bool, error)
	GetLikerIDs(ctx context.Context, tweetID uint) ([]uint, error)
}

// tweetRepository implements TweetRepository
type tweetRepository struct {
	db *gorm.DB
}

// NewTweetRepository creates a new tweet repository
func NewTweetRepository(db *gorm.DB) TweetRepository {
	return &tweetRepository{db: db}
}

// applyTweetDetails adds subqueries to fetch counts and liked status in a single query.
func (r *tweetRepository) applyTweetDetails(db *gorm.DB, currentUserID uint) *gorm.DB {
	selectQuery := "tweets.*, " +
		"(SELECT COUNT(*) FROM comments WHERE comments.tweet_id = tweets.id AND comments.deleted_at IS NULL) as comments_count, " +
		"(SELECT COUNT(*) FROM likes WHERE likes.tweet_id = tweets.id) as likes_count"

	if currentUserID != 0 {
		return db.Select(selectQuery+", EXISTS(SELECT 1 FROM likes WHERE likes.tweet_id = tweets.id AND likes.user_id = ?) as liked", currentUserID)
	}

	return db.Select(selectQuery + ", false as liked")
}

func (r *tweetRepository) Create(ctx context.Context, tweet *models.Tweet) error {
	if err := r.db.WithContext(ctx).Create(tweet).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *tweetRepository) GetByID(ctx context.Context, id uint, currentUserID uint) (*models.Tweet, error) {
	var tweet models.Tweet

	fetch := func() error {
		if err := r.applyTweetDetails(r.db.WithContext(ctx), currentUserID).
			Preload("User").
			First(&tweet, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Tweet", id)
			}
			return models.NewInternalError(err)
		}
		return nil
	}

	var err error
	if currentUserID == 0 {
		// Anonymous reads share one cache entry; authenticated reads need the
		// per-viewer liked flag so they always hit the database.
		err = cache.Aside(ctx, cache.TweetKey(id), &tweet, cache.TweetTTL, fetch)
	} else {
		err = fetch()
	}
	if err != nil {
		return nil, err
	}
	return &tweet, nil
}

func (r *tweetRepository) GetByUserID(ctx context.Context, userID uint, limit, offset int, currentUserID uint) ([]*models.Tweet, error) {
	var tweets []*models.Tweet
	if err := r.applyTweetDetails(r.db.WithContext(ctx), currentUserID).
		Preload("User").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&tweets).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return tweets, nil
}

func (r *tweetRepository) List(ctx context.Context, limit, offset int, currentUserID uint) ([]*models.Tweet, error) {
	var tweets []*models.Tweet
	if err := r.applyTweetDetails(r.db.WithContext(ctx), currentUserID).
		Preload("User").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&tweets).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return tweets, nil
}

// Timeline returns tweets by the user and everyone they follow, newest first.
func (r *tweetRepository) Timeline(ctx context.Context, userID uint, limit, offset int) ([]*models.Tweet, error) {
	defer observability.TrackQuery("select", "tweets")()

	var tweets []*models.Tweet
	if err := r.applyTweetDetails(r.db.WithContext(ctx), userID).
		Preload("User").
		Where("tweets.user_id = ? OR tweets.user_id IN (SELECT followee_id FROM follows WHERE follower_id = ?)", userID, userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&tweets).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return tweets, nil
}

func (r *tweetRepository) Search(ctx context.Context, query string, limit, offset int, currentUserID uint) ([]*models.Tweet, error) {
	var tweets []*models.Tweet
	// LOWER + LIKE instead of ILIKE so the query also runs on sqlite in tests.
	like := "%" + strings.ToLower(query) + "%"
	if err := r.applyTweetDetails(r.db.WithContext(ctx), currentUserID).
		Preload("User").
		Where("LOWER(text) LIKE ?", like).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&tweets).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return tweets, nil
}

// Delete soft-deletes the tweet and its comments and hard-deletes its likes
// in one transaction. Notifications keep their tweet reference; readers
// tolerate the tweet being gone.
func (r *tweetRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("tweet_id = ?", id).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("tweet_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Tweet{}, id).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateTweet(ctx, id)
	return nil
}

// Like inserts the like row. The unique index on (user_id, tweet_id) makes
// the race loser fail the insert, which surfaces as Conflict.
func (r *tweetRepository) Like(ctx context.Context, userID, tweetID uint) error {
	like := models.Like{UserID: userID, TweetID: tweetID}
	if err := r.db.WithContext(ctx).Create(&like).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("already liked")
		}
		return models.NewInternalError(err)
	}
	cache.InvalidateTweet(ctx, tweetID)
	return nil
}

// Unlike hard-deletes the like row and reports Conflict when it was never there.
func (r *tweetRepository) Unlike(ctx context.Context, userID, tweetID uint) error {
	result := r.db.WithContext(ctx).
		Unscoped().
		Where("user_id = ? AND tweet_id = ?", userID, tweetID).
		Delete(&models.Like{})
	if result.Error != nil {
		return models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewConflictError("not liked")
	}
	cache.InvalidateTweet(ctx, tweetID)
	return nil
}

func (r *tweetRepository) IsLiked(ctx context.Context, userID, tweetID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("user_id = ? AND tweet_id = ?", userID, tweetID).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// GetLikerIDs returns the IDs of users who liked the tweet, most recent first.
func (r *tweetRepository) GetLikerIDs(ctx context.Context, tweetID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("tweet_id = ?", tweetID).
		Order("created_at DESC, id DESC").
		Pluck("user_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}
