package httpserver

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const maxWebhookBodyBytes = 1 << 20 // 1MB

// readVerifiedBody authenticates an inbound webhook. It reads the raw,
// unparsed body and verifies its HMAC before anything else looks at it;
// parsing a body that failed verification is the bug class this gate
// exists to prevent.
//
// On failure the response has already been written: 500 for a missing
// secret (fatal misconfiguration), 401 for a bad or missing signature.
func readVerifiedBody(c *gin.Context, secret string, log *logrus.Entry) ([]byte, bool) {
	if secret == "" {
		log.Error("Webhook secret not configured")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false})
		return nil, false
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes)
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.WithError(err).Warn("Failed to read webhook body")
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false})
		return nil, false
	}

	if !VerifySignature(secret, rawBody, c.GetHeader(SignatureHeader)) {
		log.WithField("path", c.Request.URL.Path).Warn("Webhook signature verification failed")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false})
		return nil, false
	}

	return rawBody, true
}
