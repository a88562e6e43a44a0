package services

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/shreyasurfriend/scavenger-hunt/models"
	"github.com/shreyasurfriend/scavenger-hunt/utils"
)

// ErrPhotoStorage marks an upload failure between verdict and ledger commit.
// Nothing is persisted in that case; the caller should retry.
var ErrPhotoStorage = errors.New("photo storage failed")

// PhotoStore hands normalized photo bytes to some storage backend and
// returns an opaque reference retrievable for later audit.
type PhotoStore interface {
	Save(ctx context.Context, childID, activityID uint, jpegData []byte) (string, error)
}

// PhotoValidator is the external vision-reasoning call.
type PhotoValidator interface {
	ValidatePhoto(ctx context.Context, imageDataURI, description, criterion string) (*Verdict, error)
}

// PhotoModerator pre-screens photos for kid-appropriate content. A flagged
// photo is rejected without ever reaching the vision model.
type PhotoModerator interface {
	Moderate(ctx context.Context, jpegData []byte) (flagged bool, reason string, err error)
}

// CompletionNotifier fans a recorded completion out to side channels
// (websocket, push, email). Best-effort only.
type CompletionNotifier interface {
	CompletionRecorded(child *models.Child, activity *models.Activity, completion *models.Completion)
}

// SubmissionRequest is one photo submission for an activity.
type SubmissionRequest struct {
	ImageBase64 string     // raw capture, optionally a data URI
	Orientation int        // EXIF orientation 1-8, 0 when unknown
	CapturedAt  *time.Time // device capture timestamp, when available
	Location    *Location  // device location, when available
}

// SubmissionResult is the terminal Approved/Rejected outcome. Pipeline
// failures surface as errors instead and persist nothing.
type SubmissionResult struct {
	Valid         bool               `json:"valid"`
	Reasoning     string             `json:"reasoning"`
	TokensAwarded int                `json:"tokens_awarded"`
	Completion    *models.Completion `json:"-"`
}

// SubmissionService runs one submission through
// normalize → moderate → validate → freshness-check → record-and-award.
type SubmissionService struct {
	db        *gorm.DB
	ledger    *LedgerService
	validator PhotoValidator
	freshness *FreshnessChecker
	photos    PhotoStore
	moderator PhotoModerator     // nil disables the pre-screen
	notifier  CompletionNotifier // nil disables side channels
}

func NewSubmissionService(
	db *gorm.DB,
	ledger *LedgerService,
	validator PhotoValidator,
	freshness *FreshnessChecker,
	photos PhotoStore,
	moderator PhotoModerator,
	notifier CompletionNotifier,
) *SubmissionService {
	return &SubmissionService{
		db:        db,
		ledger:    ledger,
		validator: validator,
		freshness: freshness,
		photos:    photos,
		moderator: moderator,
		notifier:  notifier,
	}
}

// Submit runs the full pipeline for one photo. On Approved or Rejected it
// returns a result backed by a persisted completion; every error return
// leaves no trace in the ledger.
func (s *SubmissionService) Submit(ctx context.Context, childID, activityID uint, req SubmissionRequest) (*SubmissionResult, error) {
	raw, err := decodeImagePayload(req.ImageBase64)
	if err != nil {
		return nil, err
	}

	var child models.Child
	if err := s.db.WithContext(ctx).First(&child, childID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: child %d", ErrLedgerNotFound, childID)
		}
		return nil, err
	}
	var activity models.Activity
	if err := s.db.WithContext(ctx).First(&activity, activityID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: activity %d", ErrLedgerNotFound, activityID)
		}
		return nil, err
	}

	normalized, err := utils.NormalizeImage(raw, req.Orientation, 0, 0)
	if err != nil {
		return nil, err
	}

	key := idempotencyKey(childID, activityID, normalized.Data)

	// A retry of an already-terminal attempt short-circuits here: same
	// response, no second vision call, balance untouched. The ledger
	// enforces the same guarantee again at commit time for races.
	if existing, err := s.ledger.FindByKey(ctx, key); err != nil {
		return nil, err
	} else if existing != nil {
		if existing.ChildID != childID || existing.ActivityID != activityID {
			return nil, fmt.Errorf("%w: key %s", ErrLedgerConflict, key)
		}
		return resultFrom(existing), nil
	}

	verdict, err := s.judge(ctx, &activity, normalized)
	if err != nil {
		return nil, err
	}

	if verdict.Valid && s.freshness != nil {
		if fresh, note := s.freshness.Check(req.CapturedAt, req.Location, time.Now()); fresh == FreshnessStale {
			// Freshness only ever gates an approval, it never grants one.
			verdict = &Verdict{
				Valid:     false,
				Reasoning: verdict.Reasoning + " However, " + note + ", so this photo can't be accepted. Take a new one!",
			}
		}
	}

	photoRef, err := s.photos.Save(ctx, childID, activityID, normalized.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPhotoStorage, err)
	}

	completion, err := s.ledger.RecordAndAward(ctx, childID, activityID, key, photoRef, req.CapturedAt, verdict.Valid, verdict.Reasoning)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil && completion.Validated {
		s.notifier.CompletionRecorded(&child, &activity, completion)
	}

	return resultFrom(completion), nil
}

// judge produces the verdict: moderation pre-screen first, then the vision
// model against the activity's criterion.
func (s *SubmissionService) judge(ctx context.Context, activity *models.Activity, img *utils.NormalizedImage) (*Verdict, error) {
	if s.moderator != nil {
		flagged, reason, err := s.moderator.Moderate(ctx, img.Data)
		if err != nil {
			// The pre-screen is an optional extra; the vision model still
			// sees the photo when moderation is down.
			log.Printf("moderation check failed, continuing: %v", err)
		} else if flagged {
			return &Verdict{Valid: false, Reasoning: reason}, nil
		}
	}

	criterion := activity.ValidationPrompt
	if criterion == "" {
		criterion = "The photo must clearly show: " + activity.Description
	}
	return s.validator.ValidatePhoto(ctx, img.Base64DataURI(), activity.Description, criterion)
}

func resultFrom(c *models.Completion) *SubmissionResult {
	return &SubmissionResult{
		Valid:         c.Validated,
		Reasoning:     c.Reasoning,
		TokensAwarded: c.TokensAwarded,
		Completion:    c,
	}
}

// idempotencyKey pins one logical attempt to (child, activity, photo
// content), so the same photo resubmitted for the same activity collapses
// into the original completion.
func idempotencyKey(childID, activityID uint, normalizedJPEG []byte) string {
	photoHash := sha256.Sum256(normalizedJPEG)
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%d|%s", childID, activityID, hex.EncodeToString(photoHash[:]))))
	return hex.EncodeToString(sum[:])
}

// decodeImagePayload accepts either a bare base64 string or a
// "data:<mime>;base64," URI, as captured by the app.
func decodeImagePayload(payload string) ([]byte, error) {
	data := strings.TrimSpace(payload)
	if data == "" {
		return nil, fmt.Errorf("%w: empty image payload", utils.ErrDecodeFailed)
	}
	if strings.HasPrefix(data, "data:") {
		idx := strings.Index(data, ",")
		if idx < 0 {
			return nil, fmt.Errorf("%w: malformed data URI", utils.ErrDecodeFailed)
		}
		data = data[idx+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %v", utils.ErrDecodeFailed, err)
	}
	return raw, nil
}
