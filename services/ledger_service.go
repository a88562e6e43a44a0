package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/shreyasurfriend/scavenger-hunt/models"
)

var (
	ErrLedgerNotFound = errors.New("ledger: child or activity not found")
	// ErrLedgerConflict means an idempotency key was reused for a
	// differently-shaped request. That is a client bug, not something to
	// retry.
	ErrLedgerConflict = errors.New("ledger: idempotency key conflict")
)

// LedgerService owns the completions table and the token balance it feeds.
// Every balance mutation in the system funnels through RecordAndAward; the
// balance is a denormalized counter defended by the idempotency key, never
// recomputed by summing on read.
type LedgerService struct {
	db *gorm.DB
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{db: db}
}

// FindByKey returns the completion previously recorded for an idempotency
// key, or nil when the key is unseen.
func (l *LedgerService) FindByKey(ctx context.Context, key string) (*models.Completion, error) {
	var c models.Completion
	err := l.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// RecordAndAward persists a terminal verdict and, when validated, credits the
// child's balance with the activity's current reward, both inside one
// transaction: the completion row and the balance move together or not at
// all. A replay of an already-recorded key returns the existing
// completion untouched; concurrent duplicates serialize on the unique index.
func (l *LedgerService) RecordAndAward(
	ctx context.Context,
	childID, activityID uint,
	key string,
	photoRef string,
	photoTimestamp *time.Time,
	validated bool,
	reasoning string,
) (*models.Completion, error) {
	var result *models.Completion

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if existing, err := l.replay(tx, key, childID, activityID); err != nil {
			return err
		} else if existing != nil {
			result = existing
			return nil
		}

		var child models.Child
		if err := tx.First(&child, childID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: child %d", ErrLedgerNotFound, childID)
			}
			return err
		}

		// Reward is read inside the transaction so the credited amount
		// always reflects the stored value at award time.
		var activity models.Activity
		if err := tx.First(&activity, activityID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: activity %d", ErrLedgerNotFound, activityID)
			}
			return err
		}

		tokens := 0
		if validated {
			tokens = activity.TokensReward
		}

		completion := &models.Completion{
			ChildID:        childID,
			ActivityID:     activityID,
			IdempotencyKey: key,
			PhotoRef:       photoRef,
			PhotoTimestamp: photoTimestamp,
			Validated:      validated,
			Reasoning:      reasoning,
			TokensAwarded:  tokens,
		}
		// The insert runs under a savepoint: on Postgres a unique violation
		// aborts the surrounding transaction, and the replay lookup below
		// still has to run inside it.
		createErr := tx.Transaction(func(tx *gorm.DB) error {
			return tx.Create(completion).Error
		})
		if createErr != nil {
			if errors.Is(createErr, gorm.ErrDuplicatedKey) {
				// Lost the race against a concurrent duplicate; hand back
				// whatever that attempt recorded.
				existing, rerr := l.replay(tx, key, childID, activityID)
				if rerr != nil {
					return rerr
				}
				if existing != nil {
					result = existing
					return nil
				}
			}
			return createErr
		}

		if tokens > 0 {
			res := tx.Model(&models.Child{}).
				Where("id = ?", childID).
				UpdateColumn("token_balance", gorm.Expr("token_balance + ?", tokens))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected != 1 {
				return fmt.Errorf("%w: child %d vanished during award", ErrLedgerNotFound, childID)
			}
		}

		result = completion
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// replay looks up a prior completion for the key and checks that the retry
// has the same shape as the original request.
func (l *LedgerService) replay(tx *gorm.DB, key string, childID, activityID uint) (*models.Completion, error) {
	var existing models.Completion
	err := tx.Where("idempotency_key = ?", key).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if existing.ChildID != childID || existing.ActivityID != activityID {
		return nil, fmt.Errorf("%w: key %s belongs to child %d activity %d",
			ErrLedgerConflict, key, existing.ChildID, existing.ActivityID)
	}
	return &existing, nil
}

// ListCompletions returns a child's completion history, newest first.
func (l *LedgerService) ListCompletions(ctx context.Context, childID uint) ([]models.Completion, error) {
	var completions []models.Completion
	err := l.db.WithContext(ctx).
		Where("child_id = ?", childID).
		Order("created_at desc").
		Find(&completions).Error
	return completions, err
}
