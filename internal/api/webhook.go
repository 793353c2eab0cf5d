package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"autoreply/internal/webhook"
)

const maxWebhookBody = 1 << 20

func (s *Server) handleVerify(c *gin.Context) {
	challenge, err := webhook.VerifyHandshake(
		c.Query("hub.mode"),
		c.Query("hub.verify_token"),
		c.Query("hub.challenge"),
		s.verifyToken,
	)
	if err != nil {
		s.log.Warn("webhook verification failed", "request_id", getRequestID(c))
		writeError(c, http.StatusForbidden, "Verification failed")
		return
	}

	if n, err := strconv.ParseInt(challenge, 10, 64); err == nil {
		c.JSON(http.StatusOK, n)
		return
	}
	c.String(http.StatusOK, challenge)
}

// handleDelivery always answers 200 so the platform does not retry a batch
// that was partially processed.
func (s *Server) handleDelivery(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		s.log.Error("read webhook body", "request_id", getRequestID(c), "error", err)
		c.JSON(http.StatusOK, gin.H{"status": "error"})
		return
	}

	payload, err := webhook.Decode(body)
	if err != nil {
		s.log.Warn("decode webhook body", "request_id", getRequestID(c), "error", err)
		c.JSON(http.StatusOK, gin.H{"status": "error"})
		return
	}
	if payload.Object != webhook.ObjectInstagram {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	sum := s.processor.Process(c.Request.Context(), payload.Events())
	s.log.Info("webhook processed",
		"request_id", getRequestID(c),
		"replied", sum.Replied,
		"no_bot", sum.NoBot,
		"delivery_failed", sum.DeliveryFailed,
		"errors", sum.Errors)
	if !sum.OK() {
		c.JSON(http.StatusOK, gin.H{"status": "error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
