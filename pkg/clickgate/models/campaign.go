package models

import (
	"time"

	"gorm.io/gorm"
)

// Campaign groups tracking links for reporting
type Campaign struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	UserID      uint           `gorm:"not null;index" json:"user_id"`
	Name        string         `gorm:"not null" json:"name"`
	Description string         `json:"description"`

	Links []Link `gorm:"foreignKey:CampaignID" json:"links,omitempty"`
}

// TableName specifies the table name
func (Campaign) TableName() string {
	return "campaigns"
}
