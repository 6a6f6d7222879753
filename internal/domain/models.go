// Package domain provides the entities and errors shared by the dating service layers.
package domain

import (
	"strconv"
	"strings"
	"time"
)

// Gender values stored in users.gender.
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

// User is a member profile. PasswordHash never leaves the service.
type User struct {
	ID               int64      `db:"id" json:"id"`
	Email            string     `db:"email" json:"email"`
	Username         string     `db:"username" json:"username"`
	FirstName        string     `db:"first_name" json:"first_name"`
	LastName         string     `db:"last_name" json:"last_name"`
	PasswordHash     string     `db:"password_hash" json:"-"`
	Gender           *string    `db:"gender" json:"gender,omitempty"`
	SexualPreference *string    `db:"sexual_preference" json:"sexual_preference,omitempty"`
	Biography        *string    `db:"biography" json:"biography,omitempty"`
	BirthDate        *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Latitude         *float64   `db:"latitude" json:"latitude,omitempty"`
	Longitude        *float64   `db:"longitude" json:"longitude,omitempty"`
	City             *string    `db:"city" json:"city,omitempty"`
	FameRating       int        `db:"fame_rating" json:"fame_rating"`
	IsVerified       bool       `db:"is_verified" json:"is_verified"`
	IsOnline         bool       `db:"is_online" json:"is_online"`
	LastSeenAt       *time.Time `db:"last_seen_at" json:"last_seen_at,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// Photo is an image attached to a profile. At most one photo per user is primary.
type Photo struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	URL       string    `db:"url" json:"url"`
	IsPrimary bool      `db:"is_primary" json:"is_primary"`
	Position  int       `db:"position" json:"position"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Like records that LikerID liked LikedID.
type Like struct {
	ID        int64     `db:"id" json:"id"`
	LikerID   int64     `db:"liker_id" json:"liker_id"`
	LikedID   int64     `db:"liked_id" json:"liked_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Match pairs two users who liked each other. UserOneID is always the lower id.
type Match struct {
	ID        int64     `db:"id" json:"id"`
	UserOneID int64     `db:"user_one_id" json:"user_one_id"`
	UserTwoID int64     `db:"user_two_id" json:"user_two_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Other returns the participant that is not userID.
func (m *Match) Other(userID int64) int64 {
	if m.UserOneID == userID {
		return m.UserTwoID
	}
	return m.UserOneID
}

// Block records that BlockerID no longer wants contact with BlockedID.
type Block struct {
	ID        int64     `db:"id" json:"id"`
	BlockerID int64     `db:"blocker_id" json:"blocker_id"`
	BlockedID int64     `db:"blocked_id" json:"blocked_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Hashtag is an interest tag. Names are stored normalized.
type Hashtag struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// HashtagUsage is a hashtag with the number of users carrying it.
type HashtagUsage struct {
	ID         int64  `db:"id" json:"id"`
	Name       string `db:"name" json:"name"`
	UsageCount int64  `db:"usage_count" json:"usage_count"`
}

// Identity is a gender identity a user can hold or look for.
type Identity struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ChatRoom is the conversation between two matched users. UserOneID is the lower id.
type ChatRoom struct {
	ID            int64      `db:"id" json:"id"`
	UserOneID     int64      `db:"user_one_id" json:"user_one_id"`
	UserTwoID     int64      `db:"user_two_id" json:"user_two_id"`
	LastMessageAt *time.Time `db:"last_message_at" json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// HasParticipant reports whether userID is one of the two room members.
func (r *ChatRoom) HasParticipant(userID int64) bool {
	return r.UserOneID == userID || r.UserTwoID == userID
}

// ChatRoomSummary is a room as seen by one participant, enriched with the
// other participant's profile and the latest message.
type ChatRoomSummary struct {
	ID             int64      `db:"id" json:"id"`
	OtherUserID    int64      `db:"other_user_id" json:"other_user_id"`
	OtherUsername  string     `db:"other_username" json:"other_username"`
	OtherFirstName string     `db:"other_first_name" json:"other_first_name"`
	OtherIsOnline  bool       `db:"other_is_online" json:"other_is_online"`
	OtherPhotoURL  string     `db:"other_photo_url" json:"other_photo_url"`
	LastMessage    *string    `db:"last_message" json:"last_message,omitempty"`
	LastMessageAt  *time.Time `db:"last_message_at" json:"last_message_at,omitempty"`
	UnreadCount    int64      `db:"unread_count" json:"unread_count"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// ChatMessage is one message in a room.
type ChatMessage struct {
	ID        int64     `db:"id" json:"id"`
	RoomID    int64     `db:"room_id" json:"room_id"`
	SenderID  int64     `db:"sender_id" json:"sender_id"`
	Content   string    `db:"content" json:"content"`
	IsRead    bool      `db:"is_read" json:"is_read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Notification types.
const (
	NotificationLike    = "like"
	NotificationMatch   = "match"
	NotificationUnlike  = "unlike"
	NotificationMessage = "message"
	NotificationVisit   = "visit"
)

// Notification is an in-app notice for UserID, optionally caused by ActorID.
type Notification struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	ActorID   *int64    `db:"actor_id" json:"actor_id,omitempty"`
	Type      string    `db:"type" json:"type"`
	Message   string    `db:"message" json:"message"`
	IsRead    bool      `db:"is_read" json:"is_read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// OrderedPair returns a and b with the lower id first, the storage order of
// matches and chat rooms.
func OrderedPair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}

// NormalizeHashtag lowercases a tag, strips a leading '#', and collapses
// whitespace into underscores.
func NormalizeHashtag(tag string) string {
	tag = strings.TrimSpace(tag)
	tag = strings.TrimLeft(tag, "#")
	return strings.ToLower(strings.Join(strings.Fields(tag), "_"))
}

// FormatID renders an entity id for error messages.
func FormatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
