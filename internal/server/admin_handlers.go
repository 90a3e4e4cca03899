package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/drillhub/backend/internal/catalog"
)

type categoryCreatePayload struct {
	Name string `json:"name"`
}

type categoryUpdatePayload struct {
	Name         *string `json:"name"`
	DisplayOrder *int    `json:"display_order"`
}

type displayOrderPayload struct {
	DisplayOrder int `json:"display_order"`
}

type categoryBatchOrderPayload struct {
	Orders map[string]int `json:"orders"`
}

type questionDraftPayload struct {
	Title          string                `json:"title"`
	Statement      string                `json:"statement"`
	CategoryID     string                `json:"category_id"`
	Level          string                `json:"level"`
	DisplayOrder   *int                  `json:"display_order"`
	Snippets       []catalog.CodeSnippet `json:"snippets"`
	ImageURLs      []string              `json:"image_urls"`
	ImageFolderURL string                `json:"image_folder_url"`
}

type questionPatchPayload struct {
	Title          *string               `json:"title"`
	Statement      *string               `json:"statement"`
	CategoryID     *string               `json:"category_id"`
	Level          *string               `json:"level"`
	DisplayOrder   *int                  `json:"display_order"`
	Snippets       []catalog.CodeSnippet `json:"snippets"`
	ImageURLs      []string              `json:"image_urls"`
	ImageFolderURL *string               `json:"image_folder_url"`
}

type questionBatchOrderPayload struct {
	Updates []catalog.DisplayOrderUpdate `json:"updates"`
}

type orderResetPayload struct {
	CategoryID string `json:"category_id"`
	Level      string `json:"level"`
}

func (h *httpHandler) handleAdminOverview(c *gin.Context) {
	if h.admin == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	overview, err := h.admin.Overview(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

func (h *httpHandler) handleAdminListCategories(c *gin.Context) {
	categories, err := h.categories.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories, "count": len(categories)})
}

func (h *httpHandler) handleAdminCreateCategory(c *gin.Context) {
	var request categoryCreatePayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	category, err := h.categories.Create(c.Request.Context(), request.Name, c.GetString(userIDContextKey))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

func (h *httpHandler) handleAdminUpdateCategory(c *gin.Context) {
	var request categoryUpdatePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	category, err := h.categories.Update(c.Request.Context(), c.Param("categoryId"), catalog.CategoryPatch{
		Name:         request.Name,
		DisplayOrder: request.DisplayOrder,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

func (h *httpHandler) handleAdminDeleteCategory(c *gin.Context) {
	result, err := h.categories.Delete(c.Request.Context(), c.Param("categoryId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *httpHandler) handleAdminCategoryOrder(c *gin.Context) {
	var request displayOrderPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	category, err := h.categories.UpdateDisplayOrder(c.Request.Context(), c.Param("categoryId"), request.DisplayOrder)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

func (h *httpHandler) handleAdminBatchCategoryOrder(c *gin.Context) {
	var request categoryBatchOrderPayload
	if err := c.ShouldBindJSON(&request); err != nil || len(request.Orders) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	updated, err := h.categories.BatchUpdateDisplayOrder(c.Request.Context(), request.Orders)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

func (h *httpHandler) handleAdminQuestionSummary(c *gin.Context) {
	page, err := h.questions.AdminSummary(c.Request.Context(), queryInt(c, "page", 1), queryInt(c, "size", 20))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *httpHandler) handleAdminCreateQuestion(c *gin.Context) {
	var request questionDraftPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	level, err := catalog.ParseLevel(request.Level)
	if err != nil {
		h.respondError(c, err)
		return
	}

	question, err := h.questions.Create(c.Request.Context(), catalog.QuestionDraft{
		Title:          request.Title,
		Statement:      request.Statement,
		CategoryID:     request.CategoryID,
		Level:          level,
		DisplayOrder:   request.DisplayOrder,
		Snippets:       request.Snippets,
		ImageURLs:      request.ImageURLs,
		ImageFolderURL: request.ImageFolderURL,
	}, c.GetString(userIDContextKey))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, question)
}

func (h *httpHandler) handleAdminUpdateQuestion(c *gin.Context) {
	var request questionPatchPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	patch := catalog.QuestionPatch{
		Title:          request.Title,
		Statement:      request.Statement,
		CategoryID:     request.CategoryID,
		DisplayOrder:   request.DisplayOrder,
		Snippets:       request.Snippets,
		ImageURLs:      request.ImageURLs,
		ImageFolderURL: request.ImageFolderURL,
	}
	if request.Level != nil {
		level, err := catalog.ParseLevel(*request.Level)
		if err != nil {
			h.respondError(c, err)
			return
		}
		patch.Level = &level
	}

	question, err := h.questions.Update(c.Request.Context(), c.Param("questionId"), patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, question)
}

func (h *httpHandler) handleAdminDeleteQuestion(c *gin.Context) {
	result, err := h.questions.Delete(c.Request.Context(), c.Param("questionId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *httpHandler) handleAdminQuestionOrder(c *gin.Context) {
	var request displayOrderPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	if err := h.questions.UpdateDisplayOrder(c.Request.Context(), c.Param("questionId"), request.DisplayOrder); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

func (h *httpHandler) handleAdminBatchQuestionOrder(c *gin.Context) {
	var request questionBatchOrderPayload
	if err := c.ShouldBindJSON(&request); err != nil || len(request.Updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	updated, err := h.questions.BatchUpdateDisplayOrder(c.Request.Context(), request.Updates)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

func (h *httpHandler) handleAdminResetQuestionOrder(c *gin.Context) {
	var request orderResetPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.CategoryID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	level, err := catalog.ParseLevel(request.Level)
	if err != nil {
		h.respondError(c, err)
		return
	}

	renumbered, err := h.questions.ResetDisplayOrder(c.Request.Context(), request.CategoryID, level)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"renumbered": renumbered})
}

func (h *httpHandler) handleAdminQuestionOrdering(c *gin.Context) {
	level, err := catalog.ParseLevel(c.Query("level"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	entries, err := h.questions.ListForOrdering(c.Request.Context(), c.Query("category_id"), level)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": entries, "count": len(entries)})
}
