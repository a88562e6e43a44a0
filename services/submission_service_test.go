package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/shreyasurfriend/scavenger-hunt/models"
	"github.com/shreyasurfriend/scavenger-hunt/utils"
)

type fakeValidator struct {
	mu      sync.Mutex
	calls   int
	verdict *Verdict
	err     error
}

func (f *fakeValidator) ValidatePhoto(ctx context.Context, imageDataURI, description, criterion string) (*Verdict, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	v := *f.verdict
	return &v, nil
}

func (f *fakeValidator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePhotoStore struct {
	saves int
	err   error
}

func (f *fakePhotoStore) Save(ctx context.Context, childID, activityID uint, jpegData []byte) (string, error) {
	f.saves++
	if f.err != nil {
		return "", f.err
	}
	return "photos/fake.jpg", nil
}

type fakeModerator struct {
	flagged bool
	reason  string
	err     error
}

func (f *fakeModerator) Moderate(ctx context.Context, jpegData []byte) (bool, string, error) {
	return f.flagged, f.reason, f.err
}

type recordingNotifier struct {
	events int
}

func (r *recordingNotifier) CompletionRecorded(*models.Child, *models.Activity, *models.Completion) {
	r.events++
}

func testPhotoBase64(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

type submissionFixture struct {
	db         *gorm.DB
	svc        *SubmissionService
	validator  *fakeValidator
	photos     *fakePhotoStore
	notifier   *recordingNotifier
	childID    uint
	activityID uint
}

func newSubmissionFixture(t *testing.T, validator *fakeValidator, moderator PhotoModerator) *submissionFixture {
	t.Helper()
	db := testDB(t)
	childID, activityID := seedChildAndActivity(t, db, 1)
	photos := &fakePhotoStore{}
	notifier := &recordingNotifier{}
	svc := NewSubmissionService(
		db,
		NewLedgerService(db),
		validator,
		&FreshnessChecker{MaxAge: time.Hour, region: defaultRegion},
		photos,
		moderator,
		notifier,
	)
	return &submissionFixture{
		db:         db,
		svc:        svc,
		validator:  validator,
		photos:     photos,
		notifier:   notifier,
		childID:    childID,
		activityID: activityID,
	}
}

func (fx *submissionFixture) completionCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, fx.db.Model(&models.Completion{}).Count(&count).Error)
	return count
}

func TestSubmissionService_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("Should award tokens on an approved verdict", func(t *testing.T) {
		fx := newSubmissionFixture(t, &fakeValidator{verdict: &Verdict{Valid: true, Reasoning: "round blue object found"}}, nil)

		res, err := fx.svc.Submit(ctx, fx.childID, fx.activityID, SubmissionRequest{ImageBase64: testPhotoBase64(t)})
		require.NoError(t, err)
		assert.True(t, res.Valid)
		assert.Equal(t, "round blue object found", res.Reasoning)
		assert.Equal(t, 1, res.TokensAwarded)
		assert.Equal(t, 1, balanceOf(t, fx.db, fx.childID))
		assert.Equal(t, "photos/fake.jpg", res.Completion.PhotoRef)
		assert.Equal(t, 1, fx.notifier.events)
	})

	t.Run("Should record a rejection with zero tokens and no notification", func(t *testing.T) {
		fx := newSubmissionFixture(t, &fakeValidator{verdict: &Verdict{Valid: false, Reasoning: "that is a leaf, not a ball"}}, nil)

		res, err := fx.svc.Submit(ctx, fx.childID, fx.activityID, SubmissionRequest{ImageBase64: testPhotoBase64(t)})
		require.NoError(t, err)
		assert.False(t, res.Valid)
		assert.Zero(t, res.TokensAwarded)
		assert.Zero(t, balanceOf(t, fx.db, fx.childID))
		assert.EqualValues(t, 1, fx.completionCount(t))
		assert.Zero(t, fx.notifier.events)
	})

	t.Run("Should downgrade a stale approval to a rejection", func(t *testing.T) {
		fx := newSubmissionFixture(t, &fakeValidator{verdict: &Verdict{Valid: true, Reasoning: "fountain clearly visible"}}, nil)

		captured := time.Now().Add(-3 * time.Hour)
		res, err := fx.svc.Submit(ctx, fx.childID, fx.activityID, SubmissionRequest{
			ImageBase64: testPhotoBase64(t),
			CapturedAt:  &captured,
		})
		require.NoError(t, err)
		assert.False(t, res.Valid)
		assert.Contains(t, res.Reasoning, "fountain clearly visible")
		assert.Contains(t, res.Reasoning, "can't be accepted")
		assert.Zero(t, res.TokensAwarded)
		assert.Zero(t, balanceOf(t, fx.db, fx.childID))
	})

	t.Run("Should not let freshness alone approve a rejected photo", func(t *testing.T) {
		fx := newSubmissionFixture(t, &fakeValidator{verdict: &Verdict{Valid: false, Reasoning: "wrong object"}}, nil)

		captured := time.Now().Add(-time.Minute)
		res, err := fx.svc.Submit(ctx, fx.childID, fx.activityID, SubmissionRequest{
			ImageBase64: testPhotoBase64(t),
			CapturedAt:  &captured,
		})
		require.NoError(t, err)
		assert.False(t, res.Valid)
		assert.Equal(t, "wrong object", res.Reasoning)
	})

	t.Run("Should fail without persisting anything when validation errors", func(t *testing.T) {
		fx := newSubmissionFixture(t, &fakeValidator{err: &ValidationError{Kind: ValidationTimeout}}, nil)

		_, err := fx.svc.Submit(ctx, fx.childID, fx.activityID, SubmissionRequest{ImageBase64: testPhotoBase64(t)})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, ValidationTimeout, verr.Kind)
		assert.Zero(t, fx.completionCount(t))
		assert.Zero(t, balanceOf(t, fx.db, fx.childID))
	})

	t.Run("Should short-circuit a duplicate submission without a second vision call", func(t *testing.T) {
		fx := newSubmissionFixture(t, &fakeValidator{verdict: &Verdict{Valid: true, Reasoning: "ok"}}, nil)
		payload := testPhotoBase64(t)

		first, err := fx.svc.Submit(ctx, fx.childID, fx.activityID, SubmissionRequest{ImageBase64: payload})
		require.NoError(t, err)
		second, err := fx.svc.Submit(ctx, fx.childID, fx.activityID, SubmissionRequest{ImageBase64: payload})
		require.NoError(t, err)

		assert.Equal(t, 1, fx.validator.callCount())
		assert.Equal(t, first.Completion.ID, second.Completion.ID)
		assert.Equal(t, first.TokensAwarded, second.TokensAwarded)
		assert.Equal(t, 1, balanceOf(t, fx.db, fx.childID))
		assert.EqualValues(t, 1, fx.completionCount(t))
	})

	t.Run("Should fail too-large before any vision call", func(t *testing.T) {
		fx := newSubmissionFixture(t, &fakeValidator{verdict: &Verdict{Valid: true, Reasoning: "ok"}}, nil)

		huge := base64.StdEncoding.EncodeToString(make([]byte, utils.MaxRawImageBytes+1))
		_, err := fx.svc.Submit(ctx, fx.childID, fx.activityID, SubmissionRequest{ImageBase64: huge})
		require.ErrorIs(t, err, utils.ErrImageTooLarge)
		assert.Zero(t, fx.validator.callCount())
		assert.Zero(t, fx.photos.saves)
		assert.Zero(t, fx.completionCount(t))
	})

	t.Run("Should fail decode on a corrupt payload", func(t *testing.T) {
		fx := newSubmissionFixture(t, &fakeValidator{verdict: &Verdict{Valid: true, Reasoning: "ok"}}, nil)

		_, err := fx.svc.Submit(ctx, fx.childID, fx.activityID, SubmissionRequest{ImageBase64: "not base64 at all!!!"})
		require.ErrorIs(t, err, utils.ErrDecodeFailed)
		assert.Zero(t, fx.validator.callCount())
	})

	t.Run("Should fail NotFound for an unknown activity", func(t *testing.T) {
		fx := newSubmissionFixture(t, &fakeValidator{verdict: &Verdict{Valid: true, Reasoning: "ok"}}, nil)

		_, err := fx.svc.Submit(ctx, fx.childID, fx.activityID+999, SubmissionRequest{ImageBase64: testPhotoBase64(t)})
		require.ErrorIs(t, err, ErrLedgerNotFound)
	})

	t.Run("Should reject a moderated photo without calling the vision model", func(t *testing.T) {
		validator := &fakeValidator{verdict: &Verdict{Valid: true, Reasoning: "ok"}}
		fx := newSubmissionFixture(t, validator, &fakeModerator{flagged: true, reason: "This photo isn't suitable for the app."})

		res, err := fx.svc.Submit(ctx, fx.childID, fx.activityID, SubmissionRequest{ImageBase64: testPhotoBase64(t)})
		require.NoError(t, err)
		assert.False(t, res.Valid)
		assert.Contains(t, res.Reasoning, "isn't suitable")
		assert.Zero(t, validator.callCount())
		assert.Zero(t, balanceOf(t, fx.db, fx.childID))
	})

	t.Run("Should fall through to the vision model when moderation errors", func(t *testing.T) {
		validator := &fakeValidator{verdict: &Verdict{Valid: true, Reasoning: "ok"}}
		fx := newSubmissionFixture(t, validator, &fakeModerator{err: context.DeadlineExceeded})

		res, err := fx.svc.Submit(ctx, fx.childID, fx.activityID, SubmissionRequest{ImageBase64: testPhotoBase64(t)})
		require.NoError(t, err)
		assert.True(t, res.Valid)
		assert.Equal(t, 1, validator.callCount())
	})

	t.Run("Should fail storage without recording a completion", func(t *testing.T) {
		fx := newSubmissionFixture(t, &fakeValidator{verdict: &Verdict{Valid: true, Reasoning: "ok"}}, nil)
		fx.photos.err = context.DeadlineExceeded

		_, err := fx.svc.Submit(ctx, fx.childID, fx.activityID, SubmissionRequest{ImageBase64: testPhotoBase64(t)})
		require.ErrorIs(t, err, ErrPhotoStorage)
		assert.Zero(t, fx.completionCount(t))
		assert.Zero(t, balanceOf(t, fx.db, fx.childID))
	})
}
