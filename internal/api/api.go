package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wuwenbin0122/finbot/internal/auth"
	"github.com/wuwenbin0122/finbot/internal/chat"
	"github.com/wuwenbin0122/finbot/internal/finance"
	"github.com/wuwenbin0122/finbot/internal/models"
)

// ProfileStore persists one profile per user.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	SaveProfile(ctx context.Context, profile models.UserProfile) error
	EnsureProfile(ctx context.Context, userID string) (bool, error)
}

// LedgerStore persists a user's transactions and holdings.
type LedgerStore interface {
	ListTransactions(ctx context.Context, userID string) ([]models.Transaction, error)
	AddTransaction(ctx context.Context, userID string, t models.Transaction) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, userID string, id int64) error
	ListHoldings(ctx context.Context, userID string) ([]models.Holding, error)
	AddHolding(ctx context.Context, userID string, h models.Holding) (*models.Holding, error)
	DeleteHolding(ctx context.Context, userID string, id int64) error
}

type Dependencies struct {
	Auth     *auth.Service
	Profiles ProfileStore
	Ledger   LedgerStore
	Finance  *finance.Aggregator
	Chats    *chat.Registry
	Logger   *zap.SugaredLogger
}

type Handler struct {
	authService *auth.Service
	profiles    ProfileStore
	ledger      LedgerStore
	finance     *finance.Aggregator
	chats       *chat.Registry
	logger      *zap.SugaredLogger
}

func NewHandler(deps Dependencies) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{
		authService: deps.Auth,
		profiles:    deps.Profiles,
		ledger:      deps.Ledger,
		finance:     deps.Finance,
		chats:       deps.Chats,
		logger:      logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	apiGroup := router.Group("/api")

	authGroup := apiGroup.Group("/auth")
	authGroup.POST("/register", h.handleRegister)
	authGroup.POST("/login", h.handleLogin)

	toolGroup := apiGroup.Group("/tools")
	toolGroup.POST("/tax", h.handleTaxEstimate)
	toolGroup.GET("/currency", h.handleCurrency)

	private := apiGroup.Group("", h.authService.Middleware())

	private.GET("/profile", h.handleGetProfile)
	private.PUT("/profile", h.handleSaveProfile)
	private.POST("/profile/ensure", h.handleEnsureProfile)
	private.GET("/profile/topics", h.handleTopics)

	private.GET("/transactions", h.handleListTransactions)
	private.POST("/transactions", h.handleAddTransaction)
	private.DELETE("/transactions/:id", h.handleDeleteTransaction)
	private.GET("/holdings", h.handleListHoldings)
	private.POST("/holdings", h.handleAddHolding)
	private.DELETE("/holdings/:id", h.handleDeleteHolding)
	private.GET("/finance/summary", h.handleFinanceSummary)

	private.POST("/chat/new", h.handleNewChat)
	private.GET("/chat", h.handleChatState)
	private.POST("/chat/messages", h.handleSendMessage)
	private.GET("/chat/ws", h.handleChatWebsocket)
	private.GET("/chats", h.handleListChats)
	private.POST("/chats/:id/open", h.handleOpenChat)
	private.DELETE("/chats/:id", h.handleDeleteChat)
	private.DELETE("/chats", h.handleClearChats)
}

type registerRequest struct {
	Username string
	Email    string
	Password string
}

type loginRequest struct {
	Identifier string
	Password   string
}

func (h *Handler) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid payload", err)
		return
	}

	result, err := h.authService.Register(c.Request.Context(), auth.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUsernameRequired), errors.Is(err, auth.ErrPasswordTooWeak):
			writeError(c, http.StatusBadRequest, err.Error(), err)
			return
		case errors.Is(err, auth.ErrUserExists), errors.Is(err, auth.ErrEmailExists):
			writeError(c, http.StatusConflict, err.Error(), err)
			return
		default:
			writeError(c, http.StatusInternalServerError, "failed to register user", err)
			return
		}
	}

	// New accounts get a default profile so the chat has a persona to use.
	if h.profiles != nil {
		if _, err := h.profiles.EnsureProfile(c.Request.Context(), result.User.ID); err != nil {
			h.logger.Warnw("ensure profile after register", "user_id", result.User.ID, "error", err)
		}
	}

	c.JSON(http.StatusCreated, newAuthResponse(result))
}

func (h *Handler) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid payload", err)
		return
	}

	if req.Identifier == "" || req.Password == "" {
		writeError(c, http.StatusBadRequest, "identifier and password are required", auth.ErrInvalidCredentials)
		return
	}

	result, err := h.authService.Login(c.Request.Context(), auth.LoginInput{
		Identifier: req.Identifier,
		Password:   req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(c, http.StatusUnauthorized, err.Error(), err)
			return
		default:
			writeError(c, http.StatusInternalServerError, "failed to login", err)
			return
		}
	}

	c.JSON(http.StatusOK, newAuthResponse(result))
}

var errNotConfigured = errors.New("backing store not configured")

func identity(c *gin.Context) auth.Identity {
	return auth.IdentityFrom(c.Request.Context())
}

func newAuthResponse(result *auth.AuthResult) gin.H {
	return gin.H{
		"token":     result.Token,
		"expiresAt": result.ExpiresAt.Format(time.RFC3339),
		"user": gin.H{
			"id":        result.User.ID,
			"username":  result.User.Username,
			"email":     result.User.Email,
			"createdAt": result.User.CreatedAt.Format(time.RFC3339),
			"updatedAt": result.User.UpdatedAt.Format(time.RFC3339),
		},
	}
}

func writeError(c *gin.Context, status int, message string, err error) {
	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}
