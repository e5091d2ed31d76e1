// Package billing keeps user subscription status in sync with Stripe.
// Subscription status gates scene-count limits on story creation.
package billing

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"gorm.io/gorm"

	"github.com/akibsystems/showgeki2-sub004/internal/config"
	"github.com/akibsystems/showgeki2-sub004/models"
	"github.com/akibsystems/showgeki2-sub004/pkg/httpx"
)

type Handler struct {
	DB            *gorm.DB
	WebhookSecret string
}

func NewHandler(db *gorm.DB, cfg *config.Config) *Handler {
	return &Handler{DB: db, WebhookSecret: cfg.StripeWebhookSecret}
}

// HandleStripeWebhook processes incoming Stripe webhook events
func (h *Handler) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		httpx.Error(c, http.StatusBadRequest, httpx.CodeValidation, "invalid request body")
		return
	}

	signatureHeader := c.GetHeader("Stripe-Signature")
	event, err := webhook.ConstructEvent(payload, signatureHeader, h.WebhookSecret)
	if err != nil {
		httpx.Error(c, http.StatusBadRequest, httpx.CodeValidation, "invalid webhook signature")
		return
	}

	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		h.handleSubscriptionChange(event)
	case "customer.subscription.deleted":
		h.handleSubscriptionDeleted(event)
	default:
		log.Debug().Str("type", string(event.Type)).Msg("unhandled stripe event")
	}

	// Return 200 OK to acknowledge receipt
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *Handler) handleSubscriptionChange(event stripe.Event) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		log.Error().Err(err).Msg("failed to parse subscription event")
		return
	}
	if sub.Customer == nil {
		return
	}

	status := "free"
	switch sub.Status {
	case stripe.SubscriptionStatusActive:
		status = "active"
	case stripe.SubscriptionStatusTrialing:
		status = "trial"
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid,
		stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		status = "free"
	}

	updates := map[string]interface{}{"subscription_status": status}
	if sub.CurrentPeriodEnd > 0 {
		endsAt := time.Unix(sub.CurrentPeriodEnd, 0)
		updates["subscription_ends_at"] = &endsAt
	}

	result := h.DB.Model(&models.User{}).
		Where("stripe_customer_id = ?", sub.Customer.ID).
		Updates(updates)
	if result.Error != nil {
		log.Error().Err(result.Error).Str("customer", sub.Customer.ID).Msg("failed to update subscription")
		return
	}
	if result.RowsAffected == 0 {
		log.Warn().Str("customer", sub.Customer.ID).Msg("subscription event for unknown customer")
		return
	}

	log.Info().Str("customer", sub.Customer.ID).Str("status", status).Msg("subscription updated")
}

func (h *Handler) handleSubscriptionDeleted(event stripe.Event) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		log.Error().Err(err).Msg("failed to parse subscription event")
		return
	}
	if sub.Customer == nil {
		return
	}

	h.DB.Model(&models.User{}).
		Where("stripe_customer_id = ?", sub.Customer.ID).
		Updates(map[string]interface{}{
			"subscription_status":  "free",
			"subscription_ends_at": nil,
		})

	log.Info().Str("customer", sub.Customer.ID).Msg("subscription cancelled")
}
