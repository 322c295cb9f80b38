package model

import "time"

// Post is a community safety notice published by staff.
type Post struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Title     string    `gorm:"not null;size:255" json:"title"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Excerpt   string    `gorm:"size:255" json:"excerpt"`
	Image     *string   `gorm:"type:text" json:"image,omitempty"`
	Published bool      `gorm:"default:false;index" json:"published"`
	AuthorID  int64     `gorm:"not null;index" json:"authorId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Post) TableName() string {
	return "posts"
}

// DefaultExcerpt returns the first 150 characters of content followed by "...".
func DefaultExcerpt(content string) string {
	runes := []rune(content)
	if len(runes) <= 150 {
		return content + "..."
	}
	return string(runes[:150]) + "..."
}
