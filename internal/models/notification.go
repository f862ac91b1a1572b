package models

import "time"

// NotificationKind classifies what triggered a notification.
type NotificationKind string

const (
	// NotificationKindFollow is sent when someone follows the recipient.
	NotificationKindFollow NotificationKind = "follow"
	// NotificationKindLike is sent when someone likes the recipient's tweet.
	NotificationKindLike NotificationKind = "like"
	// NotificationKindComment is sent when someone comments on the recipient's tweet.
	NotificationKindComment NotificationKind = "comment"
	// NotificationKindMention is sent when someone mentions the recipient.
	NotificationKindMention NotificationKind = "mention"
	// NotificationKindWelcome greets a new account from the root admin.
	NotificationKindWelcome NotificationKind = "welcome"
)

// Notification is a one-way fan-out record. It is never created when
// recipient == sender; self-actions must not notify.
type Notification struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	RecipientID uint             `gorm:"not null;index:idx_notifications_recipient_created" json:"recipient_id"`
	SenderID    uint             `gorm:"not null" json:"sender_id"`
	Kind        NotificationKind `gorm:"type:varchar(20);not null" json:"kind"`
	// TweetID is nulled rather than cascaded when the tweet is deleted;
	// notifications are an immutable event log with tolerant display.
	TweetID   *uint     `json:"tweet_id,omitempty"`
	CommentID *uint     `json:"comment_id,omitempty"`
	Read      bool      `gorm:"default:false" json:"read"`
	CreatedAt time.Time `gorm:"index:idx_notifications_recipient_created" json:"created_at"`

	// Relationships
	Sender User   `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Tweet  *Tweet `gorm:"foreignKey:TweetID;constraint:OnDelete:SET NULL" json:"tweet,omitempty"`
}
