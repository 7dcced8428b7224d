package models

import "time"

// Post represents a blog post written by a staff user. Content is sanitized
// HTML and may embed CDN image URLs whose storage lifecycle follows the post.
type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AuthorID  uint      `gorm:"index;not null" json:"author_id"`
	Title     string    `gorm:"size:200;not null" json:"title"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Author    User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Tags      []Tag     `gorm:"many2many:post_tags;" json:"-"`
	Comments  []Comment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

// TagNames returns the post's tag names. Order carries no meaning.
func (p *Post) TagNames() []string {
	names := make([]string, 0, len(p.Tags))
	for _, t := range p.Tags {
		names = append(names, t.Name)
	}
	return names
}

// AuthorNickname resolves the author's display name for serialization.
func (p *Post) AuthorNickname() string {
	return p.Author.DisplayName()
}
