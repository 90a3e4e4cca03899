package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/drillhub/backend/internal/approaches"
	"github.com/drillhub/backend/internal/catalog"
	"github.com/drillhub/backend/internal/progress"
)

// respondError maps domain errors onto HTTP status codes. Anything
// unrecognized is logged and reported as a 500 without leaking the
// cause.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	var approachNotFound *approaches.NotFoundError
	if errors.As(err, &approachNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":    "not_found",
			"resource": approachNotFound.Resource,
			"id":       approachNotFound.ID,
		})
		return
	}

	var catalogNotFound *catalog.NotFoundError
	if errors.As(err, &catalogNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":    "not_found",
			"resource": catalogNotFound.Resource,
			"id":       catalogNotFound.ID,
		})
		return
	}

	var quota *approaches.QuotaExceededError
	if errors.As(err, &quota) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":           "quota_exceeded",
			"kind":            string(quota.Kind),
			"question_id":     quota.QuestionID,
			"limit_bytes":     quota.LimitBytes,
			"remaining_bytes": quota.RemainingBytes,
			"attempted_bytes": quota.AttemptedBytes,
			"remaining_kb":    quota.RemainingKB(),
			"attempted_kb":    quota.AttemptedKB(),
			"max_slots":       quota.MaxSlots,
			"used_slots":      quota.UsedSlots,
		})
		return
	}

	var conflict *catalog.ConflictError
	if errors.As(err, &conflict) {
		c.JSON(http.StatusConflict, gin.H{
			"error":    "conflict",
			"resource": conflict.Resource,
			"value":    conflict.Value,
		})
		return
	}

	switch {
	case errors.Is(err, approaches.ErrVersionConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "version_conflict"})
	case errors.Is(err, progress.ErrAlreadySolved):
		c.JSON(http.StatusConflict, gin.H{"error": "already_solved"})
	case errors.Is(err, progress.ErrNotSolved):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_solved"})
	case errors.Is(err, catalog.ErrInvalidLevel):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_level"})
	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
