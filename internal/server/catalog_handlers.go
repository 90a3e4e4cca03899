package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/drillhub/backend/internal/catalog"
)

func (h *httpHandler) handleGlobalCategories(c *gin.Context) {
	info, err := h.categories.GlobalInfo(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *httpHandler) handleListQuestions(c *gin.Context) {
	filter := catalog.ListFilter{
		CategoryID: c.Query("category_id"),
		Search:     c.Query("search"),
		Page:       queryInt(c, "page", 0),
		PageSize:   queryInt(c, "size", 0),
	}
	if raw := c.Query("level"); raw != "" {
		level, err := catalog.ParseLevel(raw)
		if err != nil {
			h.respondError(c, err)
			return
		}
		filter.Level = level
	}

	page, err := h.questions.List(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *httpHandler) handleQuestionsMetadata(c *gin.Context) {
	metadata, err := h.questions.Metadata(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, metadata)
}

func (h *httpHandler) handleGetQuestion(c *gin.Context) {
	question, err := h.questions.Get(c.Request.Context(), c.Param("questionId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, question)
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
