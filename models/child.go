package models

import (
	"time"

	"gorm.io/gorm"
)

type Child struct {
	gorm.Model
	Name         string    `gorm:"size:100;not null" json:"name"`
	DateOfBirth  time.Time `gorm:"not null" json:"date_of_birth"`
	PasswordHash string    `gorm:"size:255" json:"-"`
	ParentEmail  string    `gorm:"size:255" json:"-"`
	// TokenBalance is mutated only by the ledger's award transaction.
	TokenBalance int `gorm:"not null;default:0" json:"token_balance"`

	Completions []Completion `json:"-"`
}
