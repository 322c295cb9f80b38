package handler

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/civicsafe/api/internal/auth"
	"github.com/civicsafe/api/internal/middleware"
	"github.com/civicsafe/api/internal/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

type AuthHandler struct {
	db           *gorm.DB
	jwtSecret    string
	googleConfig *oauth2.Config
	frontendURL  string
	logger       *zap.Logger
}

func NewAuthHandler(db *gorm.DB, jwtSecret string, googleConfig *oauth2.Config, frontendURL string, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		db:           db,
		jwtSecret:    jwtSecret,
		googleConfig: googleConfig,
		frontendURL:  frontendURL,
		logger:       logger,
	}
}

type TokenResponse struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	ExpiresIn    int         `json:"expiresIn"`
	User         *model.User `json:"user"`
}

type SignupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Role     string `json:"role"`
}

// Signup creates a credentials account. Only an admin may create ADMIN or
// MODERATOR accounts.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required fields"})
		return
	}

	role := auth.RoleUser
	if req.Role != "" {
		r, ok := auth.ParseRole(req.Role)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
			return
		}
		role = r
	}
	if role != auth.RoleUser && !middleware.CurrentIdentity(c).HasRole(auth.RoleAdmin) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only an admin can create staff accounts"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrWeakPassword) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("failed to hash password", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	var existing int64
	if err := h.db.WithContext(c.Request.Context()).Model(&model.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		h.logger.Error("failed to look up user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}
	if existing > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user already exists"})
		return
	}

	user := model.User{
		Provider:     model.ProviderCredentials,
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
		Role:         string(role),
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&user).Error; err != nil {
		h.logger.Error("failed to create user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}

	c.JSON(http.StatusCreated, user)
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login exchanges credentials for an access and refresh token
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	var user model.User
	err := h.db.WithContext(c.Request.Context()).
		Where("email = ? AND provider = ?", strings.ToLower(strings.TrimSpace(req.Email)), model.ProviderCredentials).
		First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		h.logger.Error("failed to find user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}

	resp, err := h.issueTokens(c, &user)
	if err != nil {
		h.logger.Error("failed to issue tokens", zap.Int64("userId", user.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate tokens"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) issueTokens(c *gin.Context, user *model.User) (*TokenResponse, error) {
	accessToken, err := auth.GenerateAccessToken(user, h.jwtSecret)
	if err != nil {
		return nil, err
	}
	refreshToken, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	stored := model.NewRefreshToken(user.ID, refreshToken, time.Now(), auth.RefreshTokenExpiry)
	if err := h.db.WithContext(c.Request.Context()).Create(stored).Error; err != nil {
		return nil, err
	}

	return &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(auth.AccessTokenExpiry.Seconds()),
		User:         user,
	}, nil
}

// GoogleAuth redirects to Google OAuth authorization URL
func (h *AuthHandler) GoogleAuth(c *gin.Context) {
	if h.googleConfig == nil || h.googleConfig.ClientID == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "google sign-in is not configured"})
		return
	}
	state := generateState()
	// Store state in cookie for CSRF protection
	c.SetCookie("oauth_state", state, 600, "/", "", false, true)

	c.Redirect(http.StatusTemporaryRedirect, h.googleConfig.AuthCodeURL(state, oauth2.AccessTypeOffline))
}

// GoogleCallback handles Google OAuth callback
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	state := c.Query("state")
	savedState, err := c.Cookie("oauth_state")
	if err != nil || state == "" || state != savedState {
		h.redirectError(c, "invalid_state")
		return
	}
	c.SetCookie("oauth_state", "", -1, "/", "", false, true)

	code := c.Query("code")
	if code == "" {
		h.redirectError(c, "no_code")
		return
	}

	ctx := c.Request.Context()
	token, err := h.googleConfig.Exchange(ctx, code)
	if err != nil {
		h.logger.Warn("failed to exchange code", zap.Error(err))
		h.redirectError(c, "exchange_failed")
		return
	}

	userInfo, err := auth.GetGoogleUserInfo(ctx, h.googleConfig, token)
	if err != nil {
		h.logger.Warn("failed to get user info", zap.Error(err))
		h.redirectError(c, "user_info_failed")
		return
	}

	// Find or create user
	var user model.User
	result := h.db.WithContext(ctx).Where("provider = ? AND provider_id = ?", model.ProviderGoogle, userInfo.ID).First(&user)

	switch {
	case errors.Is(result.Error, gorm.ErrRecordNotFound):
		user = model.User{
			Provider:   model.ProviderGoogle,
			ProviderID: userInfo.ID,
			Email:      strings.ToLower(userInfo.Email),
			Name:       userInfo.Name,
			AvatarURL:  userInfo.Picture,
			Role:       string(auth.RoleUser),
		}
		if err := h.db.WithContext(ctx).Create(&user).Error; err != nil {
			h.logger.Error("failed to create user", zap.Error(err))
			h.redirectError(c, "create_user_failed")
			return
		}
	case result.Error != nil:
		h.logger.Error("failed to find user", zap.Error(result.Error))
		h.redirectError(c, "db_error")
		return
	default:
		h.db.WithContext(ctx).Model(&user).Updates(map[string]interface{}{
			"name":       userInfo.Name,
			"avatar_url": userInfo.Picture,
			"updated_at": time.Now(),
		})
	}

	resp, err := h.issueTokens(c, &user)
	if err != nil {
		h.logger.Error("failed to issue tokens", zap.Int64("userId", user.ID), zap.Error(err))
		h.redirectError(c, "token_failed")
		return
	}

	q := url.Values{}
	q.Set("accessToken", resp.AccessToken)
	q.Set("refreshToken", resp.RefreshToken)
	c.Redirect(http.StatusTemporaryRedirect, h.frontendURL+"?"+q.Encode())
}

func (h *AuthHandler) redirectError(c *gin.Context, code string) {
	c.Redirect(http.StatusTemporaryRedirect, h.frontendURL+"?error="+code)
}

// RefreshToken refreshes access token using refresh token
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refreshToken is required"})
		return
	}

	ctx := c.Request.Context()
	var refreshToken model.RefreshToken
	result := h.db.WithContext(ctx).Where("token = ?", req.RefreshToken).First(&refreshToken)
	if result.Error != nil || !refreshToken.Usable(time.Now()) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired refresh token"})
		return
	}

	var user model.User
	if err := h.db.WithContext(ctx).First(&user, refreshToken.UserID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	accessToken, err := auth.GenerateAccessToken(&user, h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate access token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"accessToken": accessToken,
		"expiresIn":   int(auth.AccessTokenExpiry.Seconds()),
	})
}

// Logout invalidates refresh token
func (h *AuthHandler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refreshToken is required"})
		return
	}

	if err := h.db.WithContext(c.Request.Context()).Model(&model.RefreshToken{}).Where("token = ?", req.RefreshToken).Update("revoked", true).Error; err != nil {
		h.logger.Warn("failed to revoke refresh token", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"message": "logged out successfully"})
}

// Me returns current user info
func (h *AuthHandler) Me(c *gin.Context) {
	id := middleware.CurrentIdentity(c)
	if id == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var user model.User
	if err := h.db.WithContext(c.Request.Context()).First(&user, id.ID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	c.JSON(http.StatusOK, user)
}

func generateState() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
