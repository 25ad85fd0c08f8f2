package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// NewRouter assembles the webhook routes with logging and panic recovery.
func NewRouter(
	message *MessageHandler,
	payment *PaymentHandler,
	fulfillment *FulfillmentHandler,
	log *logrus.Entry,
	environment string,
) *gin.Engine {
	if environment == "production" || environment == "staging" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(Recovery(log), RequestLogger(log))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	webhooks := router.Group("/webhooks")
	webhooks.POST("/message", message.Handle)
	webhooks.POST("/payment", payment.Handle)
	webhooks.POST("/fulfillment", fulfillment.Handle)

	return router
}
