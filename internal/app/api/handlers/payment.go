package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	mw "github.com/fatflowers/checkout/internal/app/api/middleware"
	"github.com/fatflowers/checkout/internal/app/service/checkout"
	"github.com/fatflowers/checkout/pkg/logctx"
	"github.com/fatflowers/checkout/pkg/response"
)

// writeError sends the checkout error taxonomy. Only Message reaches the
// client; the cause is logged.
func writeError(c *gin.Context, log *zap.SugaredLogger, err error) {
	e := checkout.AsError(err)
	code := e.Kind.Code()
	l := logctx.FromGin(c, log).With("kind", e.Kind)
	if code.HTTPStatus() >= http.StatusInternalServerError {
		l.Errorw("request failed", "err", err)
	} else {
		l.Infow("request rejected", "err", err)
	}
	c.JSON(code.HTTPStatus(), response.Fail(code, e.Message))
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, response.Fail(response.APIResponseCodeBadRequest, err.Error()))
}

// @Summary      Create payment
// @Description  Prices the product server side and charges it through the seller's gateway for the chosen method.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Param        request body checkout.CreatePaymentRequest true "Checkout request"
// @Success      200  {object}  handlers.RespPayment
// @Failure      400  {object}  handlers.RespOK
// @Failure      404  {object}  handlers.RespOK
// @Failure      500  {object}  handlers.RespOK
// @Router       /payments/create [post]
func ApiCreatePayment(svc checkout.Orchestrator, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req checkout.CreatePaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := svc.CreatePayment(c.Request.Context(), &req)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      One-click upsell
// @Description  Charges a follow-up product against the card saved on an approved parent transaction. Requires the upsell_token returned with the parent payment.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Param        request body checkout.UpsellRequest true "Upsell request"
// @Success      200  {object}  handlers.RespPayment
// @Failure      400  {object}  handlers.RespOK
// @Failure      403  {object}  handlers.RespOK
// @Router       /payments/upsell [post]
func ApiUpsell(svc checkout.Orchestrator, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req checkout.UpsellRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := svc.Upsell(c.Request.Context(), &req)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Payment status
// @Description  Read-only poll used while the buyer waits on PIX or boleto.
// @Tags         Payment
// @Produce      json
// @Param        id query string true "Transaction id"
// @Success      200  {object}  handlers.RespStatus
// @Failure      404  {object}  handlers.RespOK
// @Router       /payments/status [get]
func ApiPaymentStatus(svc checkout.Orchestrator, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.Status(c.Request.Context(), c.Query("id"))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Refund payment
// @Description  Refunds an approved transaction in full or in part. Admins may refund any sale, sellers only their own.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body checkout.RefundRequest true "Refund request"
// @Success      200  {object}  handlers.RespRefund
// @Failure      401  {object}  handlers.RespOK
// @Failure      403  {object}  handlers.RespOK
// @Failure      409  {object}  handlers.RespOK
// @Router       /payments/refund [post]
func ApiRefund(svc checkout.Orchestrator, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := mw.ActorFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, response.Fail(response.APIResponseCodeUnauthorized, ""))
			return
		}
		var req checkout.RefundRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := svc.Refund(c.Request.Context(), actor, &req)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterPaymentRoutes(r gin.IRouter, svc checkout.Orchestrator, jwtSecret string, log *zap.SugaredLogger) {
	r.POST("/create", ApiCreatePayment(svc, log))
	r.POST("/upsell", ApiUpsell(svc, log))
	r.GET("/status", ApiPaymentStatus(svc, log))
	r.POST("/refund", mw.JWT(jwtSecret), mw.RequireRole(checkout.RoleAdmin, checkout.RoleSeller), ApiRefund(svc, log))
}
