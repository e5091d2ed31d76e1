package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/akibsystems/showgeki2-sub004/internal/config"
	"github.com/akibsystems/showgeki2-sub004/models"
	"github.com/akibsystems/showgeki2-sub004/pkg/httpx"
)

const sessionTTL = 7 * 24 * time.Hour

type Handler struct {
	DB          *gorm.DB
	Config      *config.Config
	GoogleOAuth *GoogleOAuth
}

func NewHandler(db *gorm.DB, cfg *config.Config) *Handler {
	return &Handler{
		DB:          db,
		Config:      cfg,
		GoogleOAuth: NewGoogleOAuth(cfg),
	}
}

// InitiateGoogleLogin starts the OAuth flow
func (h *Handler) InitiateGoogleLogin(c *gin.Context) {
	// State token for CSRF protection
	state := generateStateToken()
	c.SetCookie("oauth_state", state, 3600, "/", "", false, true)

	url := h.GoogleOAuth.Config.AuthCodeURL(state, oauth2.AccessTypeOffline)
	c.Redirect(http.StatusTemporaryRedirect, url)
}

// GoogleCallback handles the OAuth callback
func (h *Handler) GoogleCallback(c *gin.Context) {
	// Verify state token
	state := c.Query("state")
	storedState, _ := c.Cookie("oauth_state")

	if state == "" || state != storedState {
		httpx.Error(c, http.StatusBadRequest, httpx.CodeValidation, "invalid state token")
		return
	}

	code := c.Query("code")
	if code == "" {
		httpx.Error(c, http.StatusBadRequest, httpx.CodeValidation, "no authorization code")
		return
	}

	googleUser, err := h.GoogleOAuth.GetUserInfo(c.Request.Context(), code)
	if err != nil {
		httpx.Internal(c, err)
		return
	}

	// Find or create user
	var user models.User
	result := h.DB.Where("google_id = ?", googleUser.ID).First(&user)

	if result.Error == gorm.ErrRecordNotFound {
		user = *models.CreateUserFromGoogle(*googleUser)
		if h.Config.IsAdminEmail(user.Email) {
			user.IsAdmin = true
		}
		if err := h.DB.Create(&user).Error; err != nil {
			httpx.Internal(c, err)
			return
		}
	} else if result.Error != nil {
		httpx.Internal(c, result.Error)
		return
	} else {
		now := time.Now()
		user.LastLoginAt = &now
		h.DB.Save(&user)
	}

	// Create a DB-backed session and set the cookie
	sessionToken, err := models.GenerateSessionToken()
	if err != nil {
		httpx.Internal(c, err)
		return
	}
	session := models.Session{
		SessionToken: sessionToken,
		UID:          user.UID,
		UserAgent:    c.Request.UserAgent(),
		IPAddress:    c.ClientIP(),
		ExpiresAt:    time.Now().Add(sessionTTL),
	}
	if err := h.DB.Create(&session).Error; err != nil {
		httpx.Internal(c, err)
		return
	}
	c.SetCookie("session_token", sessionToken, int(sessionTTL.Seconds()), "/", "", false, true)

	// Also issue a JWT for API clients that prefer a bearer token
	token, err := GenerateJWT(h.Config.JWTSecret, user.UID, user.Email)
	if err != nil {
		httpx.Internal(c, err)
		return
	}

	c.Redirect(http.StatusTemporaryRedirect,
		fmt.Sprintf("%s/auth/callback?token=%s", h.Config.FrontendURL, token))
}

// GetCurrentUser returns the authenticated user's info
func (h *Handler) GetCurrentUser(c *gin.Context) {
	uid := UID(c)

	var user models.User
	if err := h.DB.First(&user, "uid = ?", uid).Error; err != nil {
		httpx.NotFound(c, "user")
		return
	}

	c.JSON(http.StatusOK, user)
}

// Logout deletes the session row and clears cookies
func (h *Handler) Logout(c *gin.Context) {
	if sessionToken, err := c.Cookie("session_token"); err == nil && sessionToken != "" {
		h.DB.Where("session_token = ?", sessionToken).Delete(&models.Session{})
	}
	c.SetCookie("session_token", "", -1, "/", "", false, true)
	c.SetCookie("oauth_state", "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func generateStateToken() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return base64.URLEncoding.EncodeToString(b)
}
