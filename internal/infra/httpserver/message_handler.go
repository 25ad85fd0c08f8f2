package httpserver

import (
	"encoding/json"
	"net/http"

	"filing_compliance_bot/internal/app"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// MessageHandler receives inbound conversational webhooks.
type MessageHandler struct {
	conversations *app.ConversationService
	secret        string
	log           *logrus.Entry
}

func NewMessageHandler(conversations *app.ConversationService, secret string, log *logrus.Entry) *MessageHandler {
	return &MessageHandler{conversations: conversations, secret: secret, log: log}
}

type inboundMessage struct {
	SenderID string `json:"sender_id"`
	Text     string `json:"text"`
	Type     string `json:"type"`
}

// Handle processes POST /webhooks/message. Internal failures still return
// 200 so the provider does not enter a retry storm; only authentication
// failures reject.
func (h *MessageHandler) Handle(c *gin.Context) {
	rawBody, ok := readVerifiedBody(c, h.secret, h.log)
	if !ok {
		return
	}

	var msg inboundMessage
	if err := json.Unmarshal(rawBody, &msg); err != nil {
		h.log.WithError(err).Warn("Malformed message webhook body")
		c.JSON(http.StatusBadRequest, gin.H{"success": false})
		return
	}
	if msg.SenderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false})
		return
	}

	// Non-text events (media, delivery receipts) short-circuit unprocessed.
	if msg.Type != "text" {
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}

	reply, err := h.conversations.HandleMessage(c.Request.Context(), msg.SenderID, msg.Text)
	if err != nil {
		h.log.WithError(err).WithField("sender_id", msg.SenderID).Error("Failed to handle inbound message")
		c.JSON(http.StatusOK, gin.H{"success": true, "response": "Thanks! We're processing this and will get back to you shortly."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "response": reply})
}
