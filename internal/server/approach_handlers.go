package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/drillhub/backend/internal/approaches"
)

type approachCreatePayload struct {
	TextContent  string `json:"text_content"`
	CodeContent  string `json:"code_content"`
	CodeLanguage string `json:"code_language"`
}

type approachUpdatePayload struct {
	TextContent  *string `json:"text_content"`
	CodeContent  *string `json:"code_content"`
	CodeLanguage *string `json:"code_language"`
}

func (h *httpHandler) handleListApproaches(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	questionID := c.Param("questionId")

	list, err := h.approaches.ListForQuestion(c.Request.Context(), userID, questionID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"approaches": list, "count": len(list)})
}

func (h *httpHandler) handleApproachDetail(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	approach, err := h.approaches.Detail(c.Request.Context(), userID, c.Param("questionId"), c.Param("approachId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, approach)
}

func (h *httpHandler) handleCreateApproach(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	displayName := c.GetString(displayNameContextKey)
	questionID := c.Param("questionId")

	var request approachCreatePayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.TextContent) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	approach, err := h.approaches.Add(c.Request.Context(), userID, displayName, questionID, approaches.Draft{
		TextContent:  request.TextContent,
		CodeContent:  request.CodeContent,
		CodeLanguage: request.CodeLanguage,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, approach)
}

func (h *httpHandler) handleUpdateApproach(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	var request approachUpdatePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	approach, err := h.approaches.Update(
		c.Request.Context(),
		userID,
		c.Param("questionId"),
		c.Param("approachId"),
		approaches.ContentPatch{
			TextContent:  request.TextContent,
			CodeContent:  request.CodeContent,
			CodeLanguage: request.CodeLanguage,
		},
	)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, approach)
}

func (h *httpHandler) handleDeleteApproach(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	err := h.approaches.Remove(c.Request.Context(), userID, c.Param("questionId"), c.Param("approachId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *httpHandler) handleApproachUsage(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	usage, err := h.approaches.Usage(c.Request.Context(), userID, c.Param("questionId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, usage)
}

func (h *httpHandler) handleListMyApproaches(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	list, err := h.approaches.ListAllForUser(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"approaches": list, "count": len(list)})
}
