package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mikepea/stockpile/pkg/stockpile/apierr"
	"github.com/mikepea/stockpile/pkg/stockpile/models"
	"github.com/mikepea/stockpile/pkg/stockpile/store"
)

// Syncer recomputes derived group membership.
type Syncer interface {
	Sync(ctx context.Context) error
}

// Handler handles authentication requests
type Handler struct {
	store  *store.Store
	tokens *TokenIssuer
	sync   Syncer
}

// NewHandler creates a new auth handler
func NewHandler(s *store.Store, tokens *TokenIssuer, sync Syncer) *Handler {
	return &Handler{store: s, tokens: tokens, sync: sync}
}

// CredentialsRequest is the register and login request body
type CredentialsRequest struct {
	Username string `json:"username" binding:"required,max=64"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UpdateMeRequest is the PATCH /me body; omitted fields are unchanged
type UpdateMeRequest struct {
	Username *string `json:"username" binding:"omitempty,max=64"`
	Password *string `json:"password" binding:"omitempty,min=6,max=72"`
}

// AuthResponse represents the authentication response
type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// UserResponse represents user data in responses. The password hash is never exposed.
type UserResponse struct {
	ID                 string   `json:"id"`
	Username           string   `json:"username"`
	Role               string   `json:"role"`
	Groups             []string `json:"groups"`
	DefaultWarehouseID string   `json:"defaultWarehouseId,omitempty"`
}

// NewUserResponse strips u down to its public fields.
func NewUserResponse(u models.User) UserResponse {
	groups := u.Groups
	if groups == nil {
		groups = []string{}
	}
	return UserResponse{
		ID:                 u.ID,
		Username:           u.Username,
		Role:               string(u.Role),
		Groups:             groups,
		DefaultWarehouseID: u.DefaultWarehouseID,
	}
}

// Register handles user registration
// @Summary Register a new user
// @Description Create an account with a personal warehouse and receive a JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body CredentialsRequest true "Registration details"
// @Success 201 {object} AuthResponse
// @Failure 400 {object} apierr.ValidationResponse "Validation error or username taken"
// @Router /register [post]
func (h *Handler) Register(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Bind(c, err)
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		apierr.Field(c, "username", "is required")
		return
	}

	hashedPassword, err := HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process password"})
		return
	}

	ctx := c.Request.Context()
	if _, taken := h.store.UserByUsername(ctx, username); taken {
		apierr.Field(c, "username", "already exists")
		return
	}

	// A user is never stored without its personal warehouse.
	userID := uuid.NewString()
	warehouse, err := h.store.CreateWarehouse(ctx, models.Warehouse{
		Name:    username + "'s Warehouse",
		OwnerID: userID,
		Type:    models.WarehouseTypePersonal,
	})
	if err != nil {
		log.Error().Err(err).Str("username", username).Msg("failed to create personal warehouse")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create warehouse"})
		return
	}

	user, err := h.store.CreateUser(ctx, models.User{
		ID:                 userID,
		Username:           username,
		Password:           hashedPassword,
		Role:               models.SystemRoleUser,
		DefaultWarehouseID: warehouse.ID,
	})
	if err != nil {
		h.store.DeleteWarehouse(ctx, warehouse.ID)
		if errors.Is(err, store.ErrConflict) {
			apierr.Field(c, "username", "already exists")
			return
		}
		log.Error().Err(err).Str("username", username).Msg("failed to create user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	if err := h.sync.Sync(ctx); err != nil {
		log.Error().Err(err).Str("user", user.ID).Msg("group sync failed after registration")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to synchronize group membership"})
		return
	}
	if fresh, ok := h.store.GetUser(ctx, user.ID); ok {
		user = fresh
	}

	h.respondWithToken(c, http.StatusCreated, user)
}

// Login handles user login
// @Summary Login
// @Description Authenticate with username and password to receive a JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} AuthResponse
// @Failure 401 {object} map[string]string "Invalid credentials"
// @Router /login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Bind(c, err)
		return
	}

	user, ok := h.store.UserByUsername(c.Request.Context(), strings.TrimSpace(req.Username))
	if !ok || !CheckPassword(req.Password, user.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	h.respondWithToken(c, http.StatusOK, user)
}

// Logout handles user logout. Tokens are dropped client-side.
// @Summary Logout
// @Tags auth
// @Success 204
// @Router /logout [post]
func (h *Handler) Logout(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Session returns the user behind the presented token
// @Summary Current session
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]UserResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Security BearerAuth
// @Router /session [get]
func (h *Handler) Session(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": NewUserResponse(*user)})
}

// Me returns the current authenticated user
// @Summary Get current user
// @Tags auth
// @Produce json
// @Success 200 {object} UserResponse
// @Security BearerAuth
// @Router /me [get]
func (h *Handler) Me(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	c.JSON(http.StatusOK, NewUserResponse(*user))
}

// UpdateMe changes the caller's username and/or password
// @Summary Update current user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body UpdateMeRequest true "Fields to change"
// @Success 200 {object} UserResponse
// @Failure 400 {object} apierr.ValidationResponse "Validation error or username taken"
// @Security BearerAuth
// @Router /me [patch]
func (h *Handler) UpdateMe(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req UpdateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Bind(c, err)
		return
	}

	var patch models.UserPatch
	if req.Username != nil {
		name := strings.TrimSpace(*req.Username)
		if name == "" {
			apierr.Field(c, "username", "is required")
			return
		}
		patch.Username = &name
	}
	if req.Password != nil {
		hashed, err := HashPassword(*req.Password)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process password"})
			return
		}
		patch.Password = &hashed
	}

	updated, found, err := h.store.UpdateUser(c.Request.Context(), user.ID, patch)
	if errors.Is(err, store.ErrConflict) {
		apierr.Field(c, "username", "already taken")
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, NewUserResponse(updated))
}

func (h *Handler) respondWithToken(c *gin.Context, status int, user models.User) {
	token, err := h.tokens.GenerateToken(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}
	c.JSON(status, AuthResponse{Token: token, User: NewUserResponse(user)})
}

// Middleware returns the token middleware bound to this handler's store.
func (h *Handler) Middleware() gin.HandlerFunc {
	return Middleware(h.tokens, h.store)
}

// RegisterRoutes registers auth routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/register", h.Register)
	rg.POST("/login", h.Login)
	rg.POST("/logout", h.Logout)

	authed := h.Middleware()
	rg.GET("/session", authed, h.Session)
	rg.GET("/me", authed, h.Me)
	rg.PATCH("/me", authed, h.UpdateMe)
}
