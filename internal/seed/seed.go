// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"chirp/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Seeder orchestrates seeding runs. It wraps a Factory and adds the
// higher-level mesh and engagement passes.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
	opts    Options
}

// NewSeeder creates a Seeder bound to the provided Gorm DB.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	return &Seeder{db: db, factory: NewFactory(db, opts), opts: opts}
}

// ClearAll truncates every seeded table. Postgres only.
func (s *Seeder) ClearAll() error {
	log.Println("Clearing existing data...")
	sql := `TRUNCATE TABLE notifications, comments, likes, follows, tweets, users RESTART IDENTITY CASCADE;`
	return s.db.Exec(sql).Error
}

// SeedSocialMesh creates users and a follow graph between them. Each user
// follows a random subset of the others, so timelines have content to pull
// from immediately.
func (s *Seeder) SeedSocialMesh(numUsers int) ([]*models.User, error) {
	log.Printf("Seeding %d users...", numUsers)

	users := make([]*models.User, 0, numUsers)

	// Always include a few fixed accounts for manual testing
	if numUsers >= 3 {
		fixed := []struct{ name, username string }{
			{"Ada Finch", "ada"},
			{"Sam Wren", "wren"},
			{"Test Account", "test"},
		}
		for _, fx := range fixed {
			user, err := s.factory.CreateUser(func(u *models.User) {
				u.Name = fx.name
				u.Username = fx.username
				u.Email = fmt.Sprintf("%s@example.com", fx.username)
			})
			if err != nil {
				log.Printf("Failed to create fixed user %s: %v", fx.username, err)
				continue
			}
			users = append(users, user)
		}
	}

	for i := len(users); i < numUsers; i++ {
		user, err := s.factory.CreateUser()
		if err != nil {
			log.Printf("Failed to create user: %v", err)
			continue
		}
		users = append(users, user)

		if i > 0 && i%100 == 0 {
			log.Printf("Created %d users...", i)
		}
	}

	// Follow graph: each user follows 10-40% of the others
	//nolint:gosec // Weak random number generator is fine for seeding
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	edges := 0
	for _, follower := range users {
		targets := r.Perm(len(users))
		fanout := len(users) / 10
		if fanout < 2 {
			fanout = 2
		}
		fanout += r.Intn(fanout*3 + 1)
		for _, ti := range targets {
			if fanout == 0 {
				break
			}
			followee := users[ti]
			if followee.ID == follower.ID {
				continue
			}
			if err := s.factory.CreateFollow(follower, followee); err != nil {
				continue
			}
			edges++
			fanout--
		}
	}

	log.Printf("Seeded %d users with %d follow edges", len(users), edges)
	return users, nil
}

// SeedEngagement creates tweets for the given users plus likes, comments
// and the notifications those interactions would have produced.
func (s *Seeder) SeedEngagement(users []*models.User, numTweets int) ([]*models.Tweet, error) {
	if len(users) == 0 {
		return nil, fmt.Errorf("no users to seed tweets for")
	}

	log.Printf("Seeding %d tweets...", numTweets)

	//nolint:gosec // Weak random number generator is fine for seeding
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	tweets := make([]*models.Tweet, 0, numTweets)
	for i := 0; i < numTweets; i++ {
		author := users[r.Intn(len(users))]
		tweets = append(tweets, s.factory.BuildTweet(author))
	}
	if err := s.factory.CreateTweetsBatch(tweets); err != nil {
		return nil, fmt.Errorf("failed to create tweets: %w", err)
	}

	if s.opts.DryRun {
		return tweets, nil
	}

	// Engagement pass: likes and comments with matching notifications
	likes, comments := 0, 0
	for _, tweet := range tweets {
		author := findUser(users, tweet.UserID)

		numLikes := r.Intn(6)
		for _, ui := range r.Perm(len(users)) {
			if numLikes == 0 {
				break
			}
			liker := users[ui]
			if liker.ID == tweet.UserID {
				continue
			}
			if err := s.factory.CreateLike(liker, tweet); err != nil {
				continue
			}
			likes++
			numLikes--
			if author != nil {
				_ = s.factory.CreateNotification(author, liker, models.NotificationKindLike, tweet)
			}
		}

		if r.Float32() < 0.5 {
			commenter := users[r.Intn(len(users))]
			if commenter.ID != tweet.UserID {
				if _, err := s.factory.CreateComment(commenter, tweet, func(c *models.Comment) {
					c.Text = gofakeit.Sentence(r.Intn(12) + 3)
				}); err == nil {
					comments++
					if author != nil {
						_ = s.factory.CreateNotification(author, commenter, models.NotificationKindComment, tweet)
					}
				}
			}
		}
	}

	log.Printf("Seeded %d tweets, %d likes, %d comments", len(tweets), likes, comments)
	return tweets, nil
}

// ApplyPreset runs a named seeding preset.
func (s *Seeder) ApplyPreset(name string) error {
	preset, ok := Presets[name]
	if !ok {
		return fmt.Errorf("unknown preset %q", name)
	}
	users, err := s.SeedSocialMesh(preset.NumUsers)
	if err != nil {
		return err
	}
	_, err = s.SeedEngagement(users, preset.NumTweets)
	return err
}

// Preset is a named seeding profile.
type Preset struct {
	NumUsers  int
	NumTweets int
}

// Presets lists the available seeding profiles.
var Presets = map[string]Preset{
	"Minimal":       {NumUsers: 5, NumTweets: 20},
	"Standard":      {NumUsers: 50, NumTweets: 200},
	"MegaPopulated": {NumUsers: 500, NumTweets: 5000},
}

func findUser(users []*models.User, id uint) *models.User {
	for _, u := range users {
		if u.ID == id {
			return u
		}
	}
	return nil
}
