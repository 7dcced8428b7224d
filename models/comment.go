package models

import (
	"time"

	"gorm.io/gorm"
)

// Comment represents a reply to a post. A comment carries exactly one of two
// identities: an authenticated author (AuthorID set, no password) or an
// anonymous one (AuthorID null, generated AuthorName plus a bcrypt password
// hash that gates later edits and deletes).
type Comment struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	PostID       uint      `gorm:"index;not null" json:"post_id"`
	AuthorID     *uint     `gorm:"index" json:"author_id"`
	AuthorName   string    `gorm:"size:50" json:"author_name"`
	PasswordHash string    `gorm:"size:128" json:"-"`
	Content      string    `gorm:"type:text;not null" json:"content"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Author       *User     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"-"`
	Post         Post      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

// IsAnonymous reports whether the comment has no authenticated author.
func (c *Comment) IsAnonymous() bool {
	return c.AuthorID == nil
}

// Nickname resolves the display name: the author's nickname when present,
// otherwise the generated anonymous name.
func (c *Comment) Nickname() string {
	if c.Author != nil {
		return c.Author.DisplayName()
	}
	return c.AuthorName
}

// BeforeSave clears the anonymous identity fields when an authenticated
// author is attached, keeping the two identity forms mutually exclusive.
func (c *Comment) BeforeSave(tx *gorm.DB) error {
	if c.AuthorID != nil {
		c.AuthorName = ""
		c.PasswordHash = ""
	}
	return nil
}
