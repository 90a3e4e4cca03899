package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/drillhub/backend/internal/admin"
	"github.com/drillhub/backend/internal/approaches"
	"github.com/drillhub/backend/internal/auth"
	"github.com/drillhub/backend/internal/catalog"
	"github.com/drillhub/backend/internal/progress"
	"github.com/drillhub/backend/internal/ratelimit"
	"github.com/drillhub/backend/internal/users"
)

const (
	userIDContextKey      = "drillhub_user_id"
	userRoleContextKey    = "drillhub_user_role"
	displayNameContextKey = "drillhub_display_name"
)

var (
	errMissingTokenManager    = errors.New("token manager dependency required")
	errMissingUserService     = errors.New("user service dependency required")
	errMissingApproachService = errors.New("approach service dependency required")
	errMissingCatalogServices = errors.New("catalog service dependencies required")
	errMissingProgressService = errors.New("progress service dependency required")
	errInvalidAuthorization   = errors.New("authorization header missing or invalid")
)

// BackendTokenManager issues and validates the bearer tokens the API
// accepts.
type BackendTokenManager interface {
	IssueToken(ctx context.Context, claims auth.SessionClaims) (string, int64, error)
	ValidateToken(token string) (auth.SessionClaims, error)
}

// Dependencies collects everything the HTTP surface needs.
type Dependencies struct {
	TokenManager BackendTokenManager
	Users        *users.Service
	Approaches   *approaches.Service
	Categories   *catalog.CategoryService
	Questions    *catalog.QuestionService
	Progress     *progress.Service
	Admin        *admin.Service
	Limiter      *ratelimit.Limiter
	Logger       *zap.Logger
}

// NewHTTPHandler builds the gin router with every route wired.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.Users == nil {
		return nil, errMissingUserService
	}
	if deps.Approaches == nil {
		return nil, errMissingApproachService
	}
	if deps.Categories == nil || deps.Questions == nil {
		return nil, errMissingCatalogServices
	}
	if deps.Progress == nil {
		return nil, errMissingProgressService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		tokens:     deps.TokenManager,
		users:      deps.Users,
		approaches: deps.Approaches,
		categories: deps.Categories,
		questions:  deps.Questions,
		progress:   deps.Progress,
		admin:      deps.Admin,
		limiter:    deps.Limiter,
		logger:     logger,
	}

	router.Use(handler.logRequest)

	router.GET("/healthz", handler.handleHealth)
	router.POST("/auth/token", handler.handleIssueToken)

	api := router.Group("/api")
	api.Use(handler.authorizeRequest)
	api.Use(handler.limitRequestRate)

	api.GET("/categories", handler.handleGlobalCategories)

	api.GET("/questions", handler.handleListQuestions)
	api.GET("/questions/metadata", handler.handleQuestionsMetadata)
	api.GET("/questions/:questionId", handler.handleGetQuestion)

	api.GET("/questions/:questionId/approaches", handler.handleListApproaches)
	api.POST("/questions/:questionId/approaches", handler.handleCreateApproach)
	api.GET("/questions/:questionId/approaches/usage", handler.handleApproachUsage)
	api.GET("/questions/:questionId/approaches/:approachId", handler.handleApproachDetail)
	api.PUT("/questions/:questionId/approaches/:approachId", handler.handleUpdateApproach)
	api.DELETE("/questions/:questionId/approaches/:approachId", handler.handleDeleteApproach)
	api.GET("/my-approaches", handler.handleListMyApproaches)

	api.POST("/questions/:questionId/solve", handler.handleMarkSolved)
	api.DELETE("/questions/:questionId/solve", handler.handleUnmarkSolved)
	api.GET("/questions/:questionId/solve", handler.handleIsSolved)
	api.GET("/me/stats", handler.handleMeStats)
	api.GET("/me/progress/categories", handler.handleCategoriesProgress)

	adminGroup := api.Group("/admin")
	adminGroup.Use(handler.requireAdminRole)

	adminGroup.GET("/overview", handler.handleAdminOverview)

	adminGroup.GET("/categories", handler.handleAdminListCategories)
	adminGroup.POST("/categories", handler.handleAdminCreateCategory)
	adminGroup.PUT("/categories/display-order", handler.handleAdminBatchCategoryOrder)
	adminGroup.PUT("/categories/:categoryId", handler.handleAdminUpdateCategory)
	adminGroup.DELETE("/categories/:categoryId", handler.handleAdminDeleteCategory)
	adminGroup.PUT("/categories/:categoryId/display-order", handler.handleAdminCategoryOrder)

	adminGroup.GET("/questions/summary", handler.handleAdminQuestionSummary)
	adminGroup.GET("/questions/ordering", handler.handleAdminQuestionOrdering)
	adminGroup.POST("/questions", handler.handleAdminCreateQuestion)
	adminGroup.PUT("/questions/display-order", handler.handleAdminBatchQuestionOrder)
	adminGroup.POST("/questions/display-order/reset", handler.handleAdminResetQuestionOrder)
	adminGroup.PUT("/questions/:questionId", handler.handleAdminUpdateQuestion)
	adminGroup.DELETE("/questions/:questionId", handler.handleAdminDeleteQuestion)
	adminGroup.PUT("/questions/:questionId/display-order", handler.handleAdminQuestionOrder)

	return router, nil
}

type httpHandler struct {
	tokens     BackendTokenManager
	users      *users.Service
	approaches *approaches.Service
	categories *catalog.CategoryService
	questions  *catalog.QuestionService
	progress   *progress.Service
	admin      *admin.Service
	limiter    *ratelimit.Limiter
	logger     *zap.Logger
}

// logRequest emits one access line per request after the handler chain
// completes.
func (h *httpHandler) logRequest(c *gin.Context) {
	startedAt := time.Now()
	c.Next()
	h.logger.Debug("request completed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", c.Writer.Status()),
		zap.Duration("elapsed", time.Since(startedAt)),
	)
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type tokenRequestPayload struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

type tokenResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
	Role        string `json:"role"`
}

func (h *httpHandler) handleIssueToken(c *gin.Context) {
	var request tokenRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.UserID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	account, err := h.users.Resolve(c.Request.Context(), users.Profile{
		UserID:      strings.TrimSpace(request.UserID),
		Email:       strings.TrimSpace(request.Email),
		DisplayName: strings.TrimSpace(request.DisplayName),
		AvatarURL:   strings.TrimSpace(request.AvatarURL),
	})
	if err != nil {
		h.logger.Error("failed to resolve account", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "account_resolution_failed"})
		return
	}

	token, expiresIn, err := h.tokens.IssueToken(c.Request.Context(), auth.SessionClaims{
		Subject:     account.UserID,
		Role:        string(account.Role),
		DisplayName: account.DisplayName,
		Email:       account.Email,
	})
	if err != nil {
		h.logger.Error("failed to issue backend token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, tokenResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
		Role:        string(account.Role),
	})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, claims.Subject)
	c.Set(userRoleContextKey, claims.Role)
	c.Set(displayNameContextKey, claims.DisplayName)
	c.Next()
}

func (h *httpHandler) limitRequestRate(c *gin.Context) {
	if h.limiter == nil {
		c.Next()
		return
	}
	userID := c.GetString(userIDContextKey)
	kind := ratelimit.Write
	if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
		kind = ratelimit.Read
	}
	if !h.limiter.Allow(userID, kind) {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":            "rate_limited",
			"remaining_tokens": h.limiter.Tokens(userID, kind),
		})
		return
	}
	c.Next()
}

func (h *httpHandler) requireAdminRole(c *gin.Context) {
	if c.GetString(userRoleContextKey) != string(users.RoleAdmin) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin_role_required"})
		return
	}
	c.Next()
}
