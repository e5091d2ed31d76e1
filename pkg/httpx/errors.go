package httpx

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/akibsystems/showgeki2-sub004/pkg/validate"
)

// Error codes returned in API error bodies.
const (
	CodeValidation    = "VALIDATION"
	CodeAuthorization = "AUTHORIZATION"
	CodeNotFound      = "NOT_FOUND"
	CodeRateLimit     = "RATE_LIMIT"
	CodeInternal      = "INTERNAL"
)

// Error writes a typed error body and aborts the request.
func Error(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": code})
}

// ValidationError writes a 400 with field-level details.
func ValidationError(c *gin.Context, errs validate.Errors) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error":   "validation failed",
		"code":    CodeValidation,
		"details": errs,
	})
}

// NotFound hides whether the row exists or belongs to someone else.
func NotFound(c *gin.Context, what string) {
	Error(c, http.StatusNotFound, CodeNotFound, what+" not found")
}

// Internal logs the real error and returns a generic message.
func Internal(c *gin.Context, err error) {
	log.Error().Err(err).Str("path", c.FullPath()).Msg("internal error")
	Error(c, http.StatusInternalServerError, CodeInternal, "internal server error")
}

// RateLimited returns 429 with a retry hint in seconds.
func RateLimited(c *gin.Context, retryAfter int) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error":      "rate limited",
		"code":       CodeRateLimit,
		"retryAfter": retryAfter,
	})
}
