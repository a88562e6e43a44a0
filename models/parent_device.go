package models

import "time"

// ParentDevice is an SNS platform endpoint for push notifications to a
// parent's phone when their child completes an activity.
type ParentDevice struct {
	ID          uint      `gorm:"primaryKey"`
	ChildID     uint      `gorm:"index"`
	Platform    string    `gorm:"size:16"` // "android" | "ios"
	TokenHash   string    `gorm:"size:64"`
	EndpointARN string    `gorm:"size:256"`
	Enabled     bool      `gorm:"default:true"`
	UpdatedAt   time.Time
	CreatedAt   time.Time
}
