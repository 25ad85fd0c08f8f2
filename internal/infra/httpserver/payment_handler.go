package httpserver

import (
	"encoding/json"
	"net/http"

	"filing_compliance_bot/internal/app"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// PaymentHandler receives payment provider webhooks.
type PaymentHandler struct {
	payments *app.PaymentService
	secret   string
	log      *logrus.Entry
}

func NewPaymentHandler(payments *app.PaymentService, secret string, log *logrus.Entry) *PaymentHandler {
	return &PaymentHandler{payments: payments, secret: secret, log: log}
}

type paymentWebhook struct {
	Status         string `json:"status"`
	TransactionRef string `json:"transaction_ref"`
	Amount         int64  `json:"amount"`
	PaymentRef     string `json:"payment_ref"`
}

// Handle processes POST /webhooks/payment. Amount mismatches and other
// escalations are handled inside the service and still answer 200; the
// provider must not retry them.
func (h *PaymentHandler) Handle(c *gin.Context) {
	rawBody, ok := readVerifiedBody(c, h.secret, h.log)
	if !ok {
		return
	}

	var event paymentWebhook
	if err := json.Unmarshal(rawBody, &event); err != nil {
		h.log.WithError(err).Warn("Malformed payment webhook body")
		c.JSON(http.StatusBadRequest, gin.H{"success": false})
		return
	}
	if event.TransactionRef == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false})
		return
	}

	err := h.payments.HandlePaymentEvent(c.Request.Context(), app.PaymentEvent{
		TransactionRef: event.TransactionRef,
		Status:         event.Status,
		Amount:         event.Amount,
		PaymentRef:     event.PaymentRef,
	})
	if err != nil {
		h.log.WithError(err).WithField("transaction_id", event.TransactionRef).Error("Failed to handle payment event")
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
