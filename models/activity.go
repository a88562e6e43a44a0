package models

import (
	"gorm.io/gorm"
)

// Activity categories for Sydney locations.
const (
	CategoryCity   = "city"
	CategoryBeach  = "beach"
	CategoryBush   = "bush"
	CategoryGarden = "garden"
)

func ValidCategory(c string) bool {
	switch c {
	case CategoryCity, CategoryBeach, CategoryBush, CategoryGarden:
		return true
	}
	return false
}

// Activity is a treasure-hunt task. Rows are immutable once created; the
// submission pipeline only ever reads them.
type Activity struct {
	gorm.Model
	Title            string `gorm:"size:200;not null" json:"title"`
	Description      string `gorm:"type:text;not null" json:"description"`
	Category         string `gorm:"size:20;not null;index" json:"category"`
	AgeMin           int    `gorm:"not null" json:"age_min"`
	AgeMax           int    `gorm:"not null" json:"age_max"`
	Location         string `gorm:"size:100;not null" json:"location"`
	TokensReward     int    `gorm:"not null;default:1" json:"tokens_reward"`
	ValidationPrompt string `gorm:"type:text" json:"validation_prompt,omitempty"`
}
