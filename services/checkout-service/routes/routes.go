package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/beacon-market/services/checkout-service/controllers"
	apperrors "github.com/yashrajoria/beacon-market/services/common/errors"
	commonmw "github.com/yashrajoria/beacon-market/services/common/middleware"
)

type Controllers struct {
	Checkout      *controllers.CheckoutController
	Cart          *controllers.CartController
	Orders        *controllers.OrderController
	Accounts      *controllers.AccountController
	Notifications *controllers.NotificationController
}

// RegisterRoutes mounts every endpoint behind authMW. checkoutTimeout bounds
// a whole checkout attempt including its transaction.
func RegisterRoutes(r *gin.Engine, authMW gin.HandlerFunc, c Controllers, checkoutTimeout time.Duration) {
	authed := r.Group("")
	authed.Use(authMW)

	checkout := authed.Group("/checkout")
	checkout.Use(apperrors.ErrorMiddleware(), commonmw.RequestTimeout(checkoutTimeout))
	checkout.POST("", c.Checkout.Checkout)

	cart := authed.Group("/cart")
	cart.GET("", c.Cart.GetCart)
	cart.POST("/items", c.Cart.AddItem)
	cart.DELETE("/items/:id", c.Cart.RemoveItem)

	orders := authed.Group("/orders")
	orders.GET("", c.Orders.GetOrders)
	orders.GET("/:id", c.Orders.GetOrderByID)

	authed.GET("/account/me", c.Accounts.Me)
	authed.GET("/notifications", c.Notifications.List)
}
