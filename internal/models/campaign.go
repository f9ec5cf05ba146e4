package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	DefaultTone = "friendly"
	DefaultCTA  = "interested in learning more?"
)

type Campaign struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UserID      uint           `gorm:"not null;index" json:"user_id"`
	ProductName string         `gorm:"size:255;not null" json:"product_name"`
	Description string         `gorm:"type:text;not null" json:"description"`
	Tone        string         `gorm:"size:50;default:'friendly'" json:"tone"`
	CTA         string         `gorm:"size:255" json:"cta"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (c *Campaign) ToneOrDefault() string {
	if c.Tone == "" {
		return DefaultTone
	}
	return c.Tone
}

func (c *Campaign) CTAOrDefault() string {
	if c.CTA == "" {
		return DefaultCTA
	}
	return c.CTA
}
