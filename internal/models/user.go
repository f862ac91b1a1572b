// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents an account in the Chirp application.
type User struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Name         string `gorm:"not null" json:"name"`
	Username     string `gorm:"unique;not null" json:"username"`
	Email        string `gorm:"unique;not null" json:"email"`
	Password     string `gorm:"not null" json:"-"`
	Bio          string `json:"bio"`
	Location     string `json:"location"`
	Website      string `json:"website"`
	ProfileImage string `json:"profile_image"`
	CoverImage   string `json:"cover_image"`
	IsAdmin      bool   `gorm:"default:false" json:"is_admin"`
	// FollowersCount and FollowingCount are not persisted; computed at query time
	FollowersCount int            `gorm:"->" json:"followers_count"`
	FollowingCount int            `gorm:"->" json:"following_count"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
	Tweets         []Tweet        `gorm:"foreignKey:UserID" json:"tweets,omitempty"`
}

// Summary is the reduced projection embedded in tweets, comments and
// notifications.
type UserSummary struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	Username     string `json:"username"`
	ProfileImage string `json:"profile_image"`
}

// Summary returns the display projection of the user.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:           u.ID,
		Name:         u.Name,
		Username:     u.Username,
		ProfileImage: u.ProfileImage,
	}
}
