package model

import "time"

type User struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Provider     string    `gorm:"not null;size:20" json:"provider"`
	ProviderID   string    `gorm:"size:255" json:"providerId,omitempty"`
	Email        string    `gorm:"not null;uniqueIndex;size:255" json:"email"`
	Name         string    `gorm:"size:255" json:"name"`
	AvatarURL    string    `json:"avatarUrl"`
	PasswordHash string    `gorm:"size:255" json:"-"`
	Role         string    `gorm:"not null;default:'USER';size:20" json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}

// Providers
const (
	ProviderCredentials = "credentials"
	ProviderGoogle      = "google"
)
