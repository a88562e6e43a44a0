package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/shreyasurfriend/scavenger-hunt/models"
)

type ActivityService struct {
	db   *gorm.DB
	groq *GroqService
}

func NewActivityService(db *gorm.DB, groq *GroqService) *ActivityService {
	return &ActivityService{db: db, groq: groq}
}

// ListActivities returns activities, optionally filtered by category and by
// an age that must fall inside the activity's range.
func (s *ActivityService) ListActivities(ctx context.Context, category string, age int) ([]models.Activity, error) {
	q := s.db.WithContext(ctx).Model(&models.Activity{})
	if category != "" {
		q = q.Where("category = ?", category)
	}
	if age > 0 {
		q = q.Where("age_min <= ? AND age_max >= ?", age, age)
	}

	var activities []models.Activity
	err := q.Order("created_at desc").Find(&activities).Error
	return activities, err
}

func (s *ActivityService) GetActivity(ctx context.Context, id uint) (*models.Activity, error) {
	var activity models.Activity
	if err := s.db.WithContext(ctx).First(&activity, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: activity %d", ErrLedgerNotFound, id)
		}
		return nil, err
	}
	return &activity, nil
}

// GenerateActivities asks the text model for new activities and stores them.
// Generated rows are immutable afterwards, like any other activity.
func (s *ActivityService) GenerateActivities(ctx context.Context, category string, ageMin, ageMax, count int, location string) ([]models.Activity, error) {
	if !models.ValidCategory(category) {
		return nil, fmt.Errorf("unknown category %q", category)
	}
	if count <= 0 || count > 20 {
		count = 5
	}

	generated, err := s.groq.GenerateActivities(ctx, category, ageMin, ageMax, count, location)
	if err != nil {
		return nil, err
	}

	activities := make([]models.Activity, 0, len(generated))
	for _, g := range generated {
		if g.Title == "" || g.Description == "" {
			continue
		}
		loc := g.Location
		if loc == "" {
			loc = location
		}
		activities = append(activities, models.Activity{
			Title:            g.Title,
			Description:      g.Description,
			Category:         category,
			AgeMin:           ageMin,
			AgeMax:           ageMax,
			Location:         loc,
			TokensReward:     1,
			ValidationPrompt: g.ValidationPrompt,
		})
	}
	if len(activities) == 0 {
		return nil, errors.New("model returned no usable activities")
	}

	if err := s.db.WithContext(ctx).Create(&activities).Error; err != nil {
		return nil, err
	}
	return activities, nil
}
