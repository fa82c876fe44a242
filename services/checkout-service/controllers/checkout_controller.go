package controllers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/beacon-market/services/checkout-service/middleware"
	"github.com/yashrajoria/beacon-market/services/checkout-service/models"
	"github.com/yashrajoria/beacon-market/services/checkout-service/services"
	apperrors "github.com/yashrajoria/beacon-market/services/common/errors"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type CheckoutController struct {
	checkoutService services.CheckoutService
}

func NewCheckoutController(checkoutService services.CheckoutService) *CheckoutController {
	return &CheckoutController{checkoutService: checkoutService}
}

// Checkout handles POST /checkout. The body is optional.
func (cc *CheckoutController) Checkout(ctx *gin.Context) {
	email, err := middleware.GetBuyerEmail(ctx)
	if err != nil {
		_ = ctx.Error(apperrors.ErrUnauthorized)
		return
	}

	var req models.CheckoutRequest
	if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		_ = ctx.Error(apperrors.New(http.StatusBadRequest, "bad_request", "Invalid request", err))
		return
	}

	key := strings.TrimSpace(ctx.GetHeader(IdempotencyKeyHeader))
	if len(key) > 255 {
		_ = ctx.Error(apperrors.New(http.StatusBadRequest, "bad_request", "Idempotency-Key is too long", nil))
		return
	}

	result, cerr := cc.checkoutService.Checkout(ctx.Request.Context(), email, key, &req)
	if cerr != nil {
		_ = ctx.Error(apperrors.New(cerr.StatusCode(), string(cerr.Kind), cerr.Message, cerr))
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	ctx.JSON(status, result)
}
