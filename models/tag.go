package models

// Tag is a label attached to posts through the post_tags join table.
// Tag sets are unordered and deduplicated by name.
type Tag struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:100;uniqueIndex;not null" json:"name"`
}
