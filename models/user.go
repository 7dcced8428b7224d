package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a blog account. Local passwords are stored as bcrypt hashes;
// accounts created through GitHub login carry an empty hash, which means the
// password is unusable and only the external provider can authenticate them.
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Username     string         `gorm:"size:150;uniqueIndex;not null" json:"username"`
	Nickname     string         `gorm:"size:20;uniqueIndex" json:"nickname"`
	Email        string         `gorm:"size:255" json:"email"`
	PasswordHash string         `gorm:"size:255" json:"-"`
	GithubID     *string        `gorm:"size:255;uniqueIndex" json:"-"`
	IsStaff      bool           `gorm:"default:false" json:"is_staff"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	Posts        []Post         `gorm:"foreignKey:AuthorID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

// DisplayName returns the nickname when set, falling back to the username.
func (u *User) DisplayName() string {
	if u.Nickname != "" {
		return u.Nickname
	}
	return u.Username
}

// HasUsablePassword reports whether local password authentication is possible.
func (u *User) HasUsablePassword() bool {
	return u.PasswordHash != ""
}

// BeforeCreate hook ensures timestamps are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return nil
}

// BeforeUpdate ensures the UpdatedAt timestamp is refreshed.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now()
	return nil
}
