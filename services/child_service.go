package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/shreyasurfriend/scavenger-hunt/models"
	"github.com/shreyasurfriend/scavenger-hunt/utils"
)

const (
	minChildAge = 5
	maxChildAge = 12
)

type ChildService struct {
	db *gorm.DB
}

func NewChildService(db *gorm.DB) *ChildService {
	return &ChildService{db: db}
}

// RegisterChild creates a child profile with a zero balance. Password and
// parent email are optional.
func (s *ChildService) RegisterChild(ctx context.Context, name string, dateOfBirth time.Time, password, parentEmail string) (*models.Child, error) {
	age := utils.AgeYears(dateOfBirth, time.Now())
	if age < minChildAge || age > maxChildAge {
		return nil, fmt.Errorf("child must be between %d and %d years old", minChildAge, maxChildAge)
	}

	var passwordHash string
	if password != "" {
		var err error
		passwordHash, err = utils.HashPassword(password)
		if err != nil {
			return nil, err
		}
	}

	child := &models.Child{
		Name:         name,
		DateOfBirth:  dateOfBirth,
		PasswordHash: passwordHash,
		ParentEmail:  parentEmail,
		TokenBalance: 0,
	}
	if err := s.db.WithContext(ctx).Create(child).Error; err != nil {
		return nil, err
	}
	return child, nil
}

func (s *ChildService) GetChild(ctx context.Context, id uint) (*models.Child, error) {
	var child models.Child
	if err := s.db.WithContext(ctx).First(&child, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: child %d", ErrLedgerNotFound, id)
		}
		return nil, err
	}
	return &child, nil
}
