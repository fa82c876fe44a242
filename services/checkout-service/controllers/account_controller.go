package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/beacon-market/services/checkout-service/middleware"
	"github.com/yashrajoria/beacon-market/services/checkout-service/services"
)

type AccountController struct {
	accountService services.AccountService
}

func NewAccountController(accountService services.AccountService) *AccountController {
	return &AccountController{accountService: accountService}
}

// Me handles GET /account/me.
func (ac *AccountController) Me(ctx *gin.Context) {
	email, err := middleware.GetBuyerEmail(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	account, svcErr := ac.accountService.Me(ctx.Request.Context(), email)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"account": account})
}
