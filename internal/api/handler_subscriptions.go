package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"diuacm-web/internal/model"
	"diuacm-web/internal/store"
)

type putSubscriptionRequest struct {
	Endpoint string  `json:"endpoint" binding:"required,url"`
	P256DH   string  `json:"p256dh" binding:"required"`
	Auth     string  `json:"auth" binding:"required"`
	EventIDs []int64 `json:"event_ids" binding:"dive,gt=0"`
}

// PutSubscription creates or replaces a subscription and its event set.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	subscription := model.PushSubscription{
		Endpoint: req.Endpoint,
		P256DH:   req.P256DH,
		Auth:     req.Auth,
	}
	if err := h.store.ReplaceSubscription(c.Request.Context(), subscription, req.EventIDs); err != nil {
		log.Printf("Error saving subscription: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save subscription"})
		return
	}

	c.Status(http.StatusCreated)
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeleteSubscription removes a subscription.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.store.DeleteSubscription(c.Request.Context(), req.Endpoint); err != nil {
		log.Printf("Error deleting subscription: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete subscription"})
		return
	}

	c.Status(http.StatusNoContent)
}

// GetSubscription lists the events a subscription wants reminders for.
func (h *Handler) GetSubscription(c *gin.Context) {
	endpoint := c.Query("endpoint")
	if endpoint == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint is required"})
		return
	}

	subscription, err := h.store.FindSubscription(c.Request.Context(), endpoint)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
		return
	}
	if err != nil {
		log.Printf("Error loading subscription: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load subscription"})
		return
	}

	eventIDs := make([]int64, len(subscription.Events))
	for i, ev := range subscription.Events {
		eventIDs[i] = ev.EventID
	}

	c.JSON(http.StatusOK, gin.H{"event_ids": eventIDs})
}
