// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"chirp/internal/models"
	"chirp/internal/validation"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options configuration for the seeder and factory.
type Options struct {
	// DryRun builds entities without persisting them.
	DryRun bool
	// SkipBcrypt stores the plaintext password instead of a hash. Only
	// useful when seeding large user counts for load testing.
	SkipBcrypt bool
	// MaxDays spreads tweet created_at timestamps over this many days back.
	MaxDays int
}

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by seed presets and tests.
type Factory struct {
	db   *gorm.DB
	opts Options
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	// seed gofakeit for richer content
	gofakeit.Seed(time.Now().UnixNano())
	return &Factory{db: db, opts: opts, nextID: 1000}
}

// CreateUser constructs and persists a sample `models.User`.
// Optional override functions may modify the generated user before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	username := strings.ToLower(gofakeit.Username()) + fmt.Sprintf("%d", gofakeit.Number(100, 999))
	user := &models.User{
		Name:         gofakeit.Name(),
		Username:     username,
		Email:        gofakeit.Email(),
		Bio:          clampRunes(gofakeit.Sentence(10), validation.MaxBioLength),
		Location:     gofakeit.City(),
		Website:      gofakeit.URL(),
		ProfileImage: fmt.Sprintf("https://i.pravatar.cc/150?u=%s", gofakeit.UUID()),
		CoverImage:   fmt.Sprintf("https://picsum.photos/seed/%s/1500/500", gofakeit.UUID()),
	}

	// Password handling: allow skipping bcrypt in dev fast mode
	if f.opts.SkipBcrypt {
		user.Password = "password123"
	} else {
		hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
		user.Password = string(hashedPassword)
	}

	for _, override := range overrides {
		override(user)
	}

	if f.opts.DryRun {
		f.nextID++
		user.ID = f.nextID
		log.Printf("[dry-run] CreateUser: %s (%s)", user.Username, user.Email)
		return user, nil
	}

	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// BuildTweet constructs a tweet struct without persisting it. Useful for
// batching.
func (f *Factory) BuildTweet(user *models.User, overrides ...func(*models.Tweet)) *models.Tweet {
	tweet := &models.Tweet{
		Text:   clampRunes(gofakeit.Sentence(gofakeit.Number(4, 18)), validation.MaxTweetLength),
		UserID: user.ID,
	}

	// realistic created_at spread
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	//nolint:gosec // Weak random number generator is fine for seeding
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	daysBack := r.Intn(maxDays)
	hoursBack := r.Intn(24)
	minsBack := r.Intn(60)
	tweet.CreatedAt = time.Now().Add(-time.Duration(daysBack)*24*time.Hour - time.Duration(hoursBack)*time.Hour - time.Duration(minsBack)*time.Minute)

	// roughly 40% of tweets carry media
	if r.Float32() < 0.4 {
		tweet.MediaURL = fmt.Sprintf("https://picsum.photos/seed/%s/800/800", gofakeit.UUID())
	}

	for _, override := range overrides {
		override(tweet)
	}
	return tweet
}

// CreateTweet constructs and persists a sample `models.Tweet` for the given user.
func (f *Factory) CreateTweet(user *models.User, overrides ...func(*models.Tweet)) (*models.Tweet, error) {
	tweet := f.BuildTweet(user, overrides...)

	if f.opts.DryRun {
		f.nextID++
		tweet.ID = f.nextID
		log.Printf("[dry-run] CreateTweet: user=%d text=%q", tweet.UserID, tweet.Text)
		return tweet, nil
	}

	if err := f.db.Create(tweet).Error; err != nil {
		return nil, err
	}
	return tweet, nil
}

// CreateTweetsBatch persists multiple tweets in a single DB call when possible.
func (f *Factory) CreateTweetsBatch(tweets []*models.Tweet) error {
	if f.opts.DryRun {
		for _, tw := range tweets {
			f.nextID++
			tw.ID = f.nextID
		}
		log.Printf("[dry-run] CreateTweetsBatch: %d tweets (no DB write)", len(tweets))
		return nil
	}
	return f.db.Create(&tweets).Error
}

// CreateComment constructs and persists a sample `models.Comment` on the
// provided tweet authored by the provided user.
func (f *Factory) CreateComment(user *models.User, tweet *models.Tweet, overrides ...func(*models.Comment)) (*models.Comment, error) {
	comment := &models.Comment{
		Text:    clampRunes(gofakeit.Sentence(8), validation.MaxTweetLength),
		UserID:  user.ID,
		TweetID: tweet.ID,
	}

	for _, override := range overrides {
		override(comment)
	}

	if err := f.db.Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// CreateLike persists a like from `user` on `tweet`.
func (f *Factory) CreateLike(user *models.User, tweet *models.Tweet) error {
	like := &models.Like{
		UserID:  user.ID,
		TweetID: tweet.ID,
	}
	return f.db.Create(like).Error
}

// CreateFollow persists a follow edge from `follower` to `followee`.
func (f *Factory) CreateFollow(follower, followee *models.User) error {
	follow := &models.Follow{
		FollowerID: follower.ID,
		FolloweeID: followee.ID,
	}
	return f.db.Create(follow).Error
}

// CreateNotification persists a notification record.
func (f *Factory) CreateNotification(recipient, sender *models.User, kind models.NotificationKind, tweet *models.Tweet) error {
	notification := &models.Notification{
		RecipientID: recipient.ID,
		SenderID:    sender.ID,
		Kind:        kind,
	}
	if tweet != nil {
		notification.TweetID = &tweet.ID
	}
	return f.db.Create(notification).Error
}

func clampRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
