package models

import (
	"time"

	"github.com/google/uuid"
)

type RoleType string

const (
	RoleAdmin     RoleType = "admin"
	RoleModerator RoleType = "moderator"
	RoleUser      RoleType = "user"
)

type User struct {
	Username        string    `gorm:"primaryKey"           json:"username"`
	Email           string    `gorm:"uniqueIndex;not null" json:"email"`
	DisplayName     string    `gorm:"not null"             json:"display_name"`
	HashedPassword  string    `gorm:"not null"             json:"-"`
	RoleID          string    `gorm:"uniqueIndex;not null" json:"role_id"`
	AvatarURL       string    `json:"avatar_url,omitempty"`
	Bio             string    `json:"bio,omitempty"`
	Location        string    `json:"location,omitempty"`
	WorkIndustry    string    `json:"work_industry,omitempty"`
	WorkTitle       string    `json:"work_title,omitempty"`
	AccountVerified bool      `gorm:"default:false"        json:"account_verified"`
	InNewsletter    bool      `gorm:"default:false"        json:"in_newsletter"`
	LastLogin       time.Time `gorm:"not null"             json:"last_login"`

	Role          Role           `gorm:"foreignKey:RoleID;constraint:OnDelete:CASCADE"           json:"-"`
	LoginSessions []LoginSession `gorm:"foreignKey:Username;constraint:OnDelete:CASCADE"         json:"-"`
	AuthSessions  []AuthSession  `gorm:"foreignKey:Username;constraint:OnDelete:CASCADE"         json:"-"`
	Posts         []Post         `gorm:"foreignKey:AuthorUsername;constraint:OnDelete:CASCADE"   json:"-"`
	Comments      []Comment      `gorm:"foreignKey:AuthorUsername;constraint:OnDelete:CASCADE"   json:"-"`
	Medias        []Media        `gorm:"foreignKey:UploaderUsername;constraint:OnDelete:CASCADE" json:"-"`
	Notifications []Notification `gorm:"foreignKey:Username;constraint:OnDelete:CASCADE"         json:"-"`
}

type Role struct {
	ID   string   `gorm:"primaryKey" json:"id"`
	Type RoleType `gorm:"not null"   json:"type"`
	// Bypass marks the role as satisfying any permission check that opts
	// into bypass, without a grant row.
	Bypass bool `gorm:"default:false" json:"bypass"`

	Permissions []Permission `gorm:"foreignKey:RoleID;constraint:OnDelete:CASCADE" json:"-"`
}

// NewRole builds a role of the given type. Admin roles carry the bypass
// capability from birth; seeding one any other way silently loses it.
func NewRole(roleType RoleType) Role {
	return Role{
		ID:     uuid.NewString(),
		Type:   roleType,
		Bypass: roleType == RoleAdmin,
	}
}

// Permission is a single grant. Name is the composite key:
// "resource:action" for global grants, "resource:resource_id:action" for
// instance-scoped ones.
type Permission struct {
	ID     string `gorm:"primaryKey"                               json:"id"`
	Name   string `gorm:"uniqueIndex:idx_role_permission;not null" json:"name"`
	RoleID string `gorm:"uniqueIndex:idx_role_permission;not null" json:"role_id"`
}

// LoginSession is a long-lived browsing session. The row is the source of
// truth: expired rows are rejected when presented, not garbage-collected.
type LoginSession struct {
	ID        string    `gorm:"primaryKey"     json:"-"`
	Username  string    `gorm:"index;not null" json:"username"`
	IssuedAt  time.Time `gorm:"not null"       json:"issued_at"`
	ExpiresAt time.Time `gorm:"not null"       json:"expires_at"`
}

// AuthSession proves control of an email address. Consumed exactly once on
// verification.
type AuthSession struct {
	ID        string    `gorm:"primaryKey"     json:"-"`
	Username  string    `gorm:"index;not null" json:"username"`
	IssuedAt  time.Time `gorm:"not null"       json:"issued_at"`
	ExpiresAt time.Time `gorm:"not null"       json:"expires_at"`
}

type Post struct {
	ID             string    `gorm:"primaryKey"     json:"post_id"`
	AuthorUsername string    `gorm:"index;not null" json:"author_username"`
	Title          string    `gorm:"not null"       json:"title"`
	Description    string    `json:"description"`
	Content        string    `json:"content"`
	Published      bool      `gorm:"default:false"  json:"published"`
	Featured       bool      `gorm:"default:false"  json:"featured"`
	Modified       bool      `gorm:"default:false"  json:"modified"`
	CreatedAt      time.Time `gorm:"not null"       json:"created_at"`
	LastModified   time.Time `gorm:"not null"       json:"last_modified"`

	Comments []Comment   `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	Medias   []PostMedia `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
}

type Tag struct {
	ID   string `gorm:"primaryKey"           json:"tag_id"`
	Name string `gorm:"uniqueIndex;not null" json:"name"`
}

type PostTag struct {
	PostID string `gorm:"primaryKey" json:"post_id"`
	TagID  string `gorm:"primaryKey" json:"tag_id"`

	Post Post `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	Tag  Tag  `gorm:"foreignKey:TagID;constraint:OnDelete:CASCADE"  json:"-"`
}

type Comment struct {
	ID             string    `gorm:"primaryKey"     json:"comment_id"`
	PostID         string    `gorm:"index;not null" json:"post_id"`
	AuthorUsername string    `gorm:"index;not null" json:"author_username"`
	Content        string    `gorm:"not null"       json:"content"`
	Modified       bool      `gorm:"default:false"  json:"modified"`
	CreatedAt      time.Time `gorm:"not null"       json:"created_at"`
	LastModified   time.Time `gorm:"not null"       json:"last_modified"`
}

type PostLike struct {
	PostID   string `gorm:"primaryKey" json:"post_id"`
	Username string `gorm:"primaryKey" json:"username"`

	Post Post `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"   json:"-"`
	User User `gorm:"foreignKey:Username;constraint:OnDelete:CASCADE" json:"-"`
}

type CommentLike struct {
	CommentID string `gorm:"primaryKey" json:"comment_id"`
	Username  string `gorm:"primaryKey" json:"username"`

	Comment Comment `gorm:"foreignKey:CommentID;constraint:OnDelete:CASCADE" json:"-"`
	User    User    `gorm:"foreignKey:Username;constraint:OnDelete:CASCADE"  json:"-"`
}

type Media struct {
	ID               string `gorm:"primaryKey"     json:"media_id"`
	Name             string `gorm:"not null"       json:"name"`
	MediaType        string `gorm:"not null"       json:"media_type"`
	Description      string `json:"description"`
	Protected        bool   `gorm:"default:false"  json:"protected"`
	UploaderUsername string `gorm:"index;not null" json:"uploader_username"`
}

// PostMedia attaches a media object to a post. A post has at most one cover
// image; every other attachment is inline.
type PostMedia struct {
	MediaID    string `gorm:"primaryKey"     json:"media_id"`
	PostID     string `gorm:"index;not null" json:"post_id"`
	CoverImage bool   `gorm:"default:false"  json:"cover_image"`

	Media Media `gorm:"foreignKey:MediaID;constraint:OnDelete:CASCADE" json:"-"`
}

type Notification struct {
	ID        string    `gorm:"primaryKey"     json:"notification_id"`
	Username  string    `gorm:"index;not null" json:"username"`
	Content   string    `gorm:"not null"       json:"content"`
	Action    string    `json:"action"`
	Read      bool      `gorm:"default:false"  json:"read"`
	CreatedAt time.Time `gorm:"not null"       json:"created_at"`
}

// WhitelistedEmail holds addresses an admin removed with whitelisting,
// blocking them from registering again.
type WhitelistedEmail struct {
	Email string `gorm:"primaryKey" json:"email"`
}

// All lists every model for AutoMigrate.
func All() []any {
	return []any{
		&User{}, &Role{}, &Permission{},
		&LoginSession{}, &AuthSession{},
		&Post{}, &Tag{}, &PostTag{},
		&Comment{}, &PostLike{}, &CommentLike{},
		&Media{}, &PostMedia{},
		&Notification{}, &WhitelistedEmail{},
	}
}
