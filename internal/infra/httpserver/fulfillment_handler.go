package httpserver

import (
	"encoding/json"
	"net/http"

	"filing_compliance_bot/internal/app"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// FulfillmentHandler receives acknowledgments from the filing backend.
type FulfillmentHandler struct {
	fulfillments *app.FulfillmentService
	secret       string
	log          *logrus.Entry
}

func NewFulfillmentHandler(fulfillments *app.FulfillmentService, secret string, log *logrus.Entry) *FulfillmentHandler {
	return &FulfillmentHandler{fulfillments: fulfillments, secret: secret, log: log}
}

type fulfillmentWebhook struct {
	TransactionRef string `json:"transaction_ref"`
	Status         string `json:"status"` // "completed" or "failed"
	ExternalRef    string `json:"external_ref"`
	Reason         string `json:"reason"`
}

// Handle processes POST /webhooks/fulfillment.
func (h *FulfillmentHandler) Handle(c *gin.Context) {
	rawBody, ok := readVerifiedBody(c, h.secret, h.log)
	if !ok {
		return
	}

	var ack fulfillmentWebhook
	if err := json.Unmarshal(rawBody, &ack); err != nil {
		h.log.WithError(err).Warn("Malformed fulfillment webhook body")
		c.JSON(http.StatusBadRequest, gin.H{"success": false})
		return
	}
	if ack.TransactionRef == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false})
		return
	}

	var err error
	switch ack.Status {
	case "completed":
		err = h.fulfillments.Complete(c.Request.Context(), ack.TransactionRef, ack.ExternalRef)
	case "failed":
		err = h.fulfillments.Fail(c.Request.Context(), ack.TransactionRef, ack.Reason)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"success": false})
		return
	}
	if err != nil {
		h.log.WithError(err).WithField("transaction_id", ack.TransactionRef).Error("Failed to handle fulfillment ack")
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
