package models

import "time"

// Completion records one terminal submission verdict. Rows are append-only:
// never updated, never deleted. The unique idempotency key is what lets the
// ledger collapse client retries into a single award.
type Completion struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	ChildID        uint       `gorm:"index;not null" json:"child_id"`
	ActivityID     uint       `gorm:"index;not null" json:"activity_id"`
	IdempotencyKey string     `gorm:"size:64;uniqueIndex;not null" json:"-"`
	PhotoRef       string     `gorm:"size:500" json:"photo_ref,omitempty"`
	PhotoTimestamp *time.Time `json:"photo_timestamp,omitempty"`
	Validated      bool       `gorm:"not null;default:false" json:"validated"`
	Reasoning      string     `gorm:"type:text" json:"reasoning"`
	TokensAwarded  int        `gorm:"not null;default:0" json:"tokens_awarded"`
	CreatedAt      time.Time  `json:"created_at"`
}
