package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *httpHandler) handleMarkSolved(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	solved, err := h.progress.MarkSolved(c.Request.Context(), userID, c.Param("questionId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, solved)
}

func (h *httpHandler) handleUnmarkSolved(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	if err := h.progress.UnmarkSolved(c.Request.Context(), userID, c.Param("questionId")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unmarked": true})
}

func (h *httpHandler) handleIsSolved(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	solved, err := h.progress.IsSolved(c.Request.Context(), userID, c.Param("questionId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"solved": solved})
}

func (h *httpHandler) handleMeStats(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	stats, err := h.progress.Stats(c.Request.Context(), userID, queryInt(c, "page", 1), queryInt(c, "size", 10))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *httpHandler) handleCategoriesProgress(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	byCategory, err := h.progress.CategoriesProgress(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": byCategory})
}
