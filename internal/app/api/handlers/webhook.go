package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	wh "github.com/fatflowers/checkout/internal/app/service/webhook_handler"
	"github.com/fatflowers/checkout/pkg/logctx"
)

// maxWebhookBody caps what we store per notification.
const maxWebhookBody = 1 << 20

type webhookAck struct {
	Received bool `json:"received"`
}

// @Summary      Gateway webhook
// @Description  Logs the raw notification and acknowledges it. Status is re-read from the provider in the background.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        gateway path string true "mercadopago, efi, pushinpay, beehive, hypercash or stripe"
// @Param        payload body object true "Provider payload"
// @Success      200  {object}  handlers.webhookAck
// @Failure      401  {object}  handlers.webhookAck
// @Failure      503  {object}  handlers.webhookAck
// @Router       /webhooks/{gateway} [post]
func ApiWebhook(rec *wh.Reconciler, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			logctx.FromGin(c, log).Warnw("webhook body unreadable", "err", err)
			c.JSON(http.StatusBadRequest, webhookAck{Received: false})
			return
		}
		code := rec.Receive(c.Request.Context(), &wh.Delivery{
			Gateway: c.Param("gateway"),
			Payload: body,
			Headers: c.Request.Header.Clone(),
			Query:   c.Request.URL.Query(),
			TraceID: c.GetString("traceID"),
		})
		c.JSON(code, webhookAck{Received: code == http.StatusOK})
	}
}

func RegisterWebhookRoutes(r gin.IRouter, rec *wh.Reconciler, log *zap.SugaredLogger) {
	r.POST("/:gateway", ApiWebhook(rec, log))
}
