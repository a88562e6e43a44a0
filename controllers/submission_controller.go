package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shreyasurfriend/scavenger-hunt/services"
	"github.com/shreyasurfriend/scavenger-hunt/utils"
)

type SubmissionController struct {
	Submissions *services.SubmissionService
}

func NewSubmissionController(s *services.SubmissionService) *SubmissionController {
	return &SubmissionController{Submissions: s}
}

type submitPhotoRequest struct {
	ChildID     uint       `json:"child_id" binding:"required"`
	ImageBase64 string     `json:"image_base64" binding:"required"`
	Orientation int        `json:"orientation"`
	CapturedAt  *time.Time `json:"captured_at"`
	Latitude    *float64   `json:"latitude"`
	Longitude   *float64   `json:"longitude"`
}

// SubmitPhoto runs the submission pipeline for one photo. Approved and
// Rejected both answer 200 with the verdict; pipeline failures answer with a
// distinct error kind so the app can tell "try a different photo" apart from
// "try again in a moment".
func (sc *SubmissionController) SubmitPhoto(c *gin.Context) {
	activityID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid activity id"})
		return
	}

	var body submitPhotoRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req := services.SubmissionRequest{
		ImageBase64: body.ImageBase64,
		Orientation: body.Orientation,
		CapturedAt:  body.CapturedAt,
	}
	if body.Latitude != nil && body.Longitude != nil {
		req.Location = &services.Location{Latitude: *body.Latitude, Longitude: *body.Longitude}
	}

	result, err := sc.Submissions.Submit(c.Request.Context(), body.ChildID, uint(activityID), req)
	if err != nil {
		status, kind := submissionFailure(err)
		c.JSON(status, gin.H{
			"error": "We couldn't check that photo right now. Please try again.",
			"kind":  kind,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":          result.Valid,
		"reasoning":      result.Reasoning,
		"tokens_awarded": result.TokensAwarded,
	})
}

// submissionFailure maps pipeline errors onto HTTP statuses and stable kind
// strings. Nothing here is a verdict; no completion exists for any of these.
func submissionFailure(err error) (int, string) {
	switch {
	case errors.Is(err, utils.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge, "image_too_large"
	case errors.Is(err, utils.ErrDecodeFailed):
		return http.StatusBadRequest, "image_decode_failed"
	case errors.Is(err, services.ErrLedgerNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, services.ErrLedgerConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, services.ErrPhotoStorage):
		return http.StatusBadGateway, "photo_storage"
	}

	var verr *services.ValidationError
	if errors.As(err, &verr) {
		switch verr.Kind {
		case services.ValidationTimeout:
			return http.StatusGatewayTimeout, string(verr.Kind)
		case services.ValidationQuotaExceeded:
			return http.StatusTooManyRequests, string(verr.Kind)
		default: // unreachable, malformed_response
			return http.StatusBadGateway, string(verr.Kind)
		}
	}
	return http.StatusInternalServerError, "internal"
}
