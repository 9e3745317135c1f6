package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	webhookdomain "github.com/smallbiznis/storesync/internal/webhook/domain"
)

// HandleWebhook accepts a source delivery. The topic comes from the path,
// falling back to the topic header when the path is bare.
func (s *Server) HandleWebhook(c *gin.Context) {
	topic := webhookdomain.NormalizeTopic(c.Param("topic"))
	if topic == "" {
		topic = webhookdomain.NormalizeTopic(c.GetHeader(webhookdomain.HeaderTopic))
	}
	c.Set("webhook_topic", topic)

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			AbortWithError(c, ErrPayloadTooLarge)
			return
		}
		AbortWithError(c, invalidRequestError())
		return
	}

	outcome, err := s.webhooks.Receive(c.Request.Context(), webhookdomain.Request{
		ShopDomain: strings.TrimSpace(c.GetHeader(webhookdomain.HeaderShopDomain)),
		Topic:      topic,
		EventID:    strings.TrimSpace(c.GetHeader(webhookdomain.HeaderWebhookID)),
		Payload:    body,
		Signature:  strings.TrimSpace(c.GetHeader(webhookdomain.HeaderHmac)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": outcome})
}
