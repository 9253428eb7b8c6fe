package routes

import (
	"time"

	"payment-service/controllers"
	"payment-service/middleware"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type Controllers struct {
	Payment *controllers.PaymentController
	Webhook *controllers.WebhookController
	Wallet  *controllers.WalletController
	Payout  *controllers.PayoutController
}

func Register(r *gin.Engine, c Controllers, internalKey, jwtSecret string) {
	r.Use(middleware.SecurityHeaders())

	limiter := middleware.NewRateLimiter(rate.Limit(20), 40, 5*time.Minute)

	payments := r.Group("/payments")
	payments.Use(middleware.AuthMiddleware())
	payments.POST("", c.Payment.CreatePayment)
	payments.GET("/:orderId", c.Payment.GetPayment)
	payments.POST("/:id/refund", c.Payment.RefundPayment)

	// Gateway webhook: signature-verified, no auth, rate limited.
	r.POST("/payments/webhook", limiter.Middleware(), c.Webhook.StripeWebhook)

	wallet := r.Group("/wallet")
	wallet.Use(middleware.AuthMiddleware())
	wallet.GET("", c.Wallet.GetWallet)
	wallet.GET("/transactions", c.Wallet.ListTransactions)
	wallet.GET("/payouts", c.Wallet.ListPayouts)
	wallet.POST("/withdraw", c.Wallet.Withdraw)

	internal := r.Group("/internal")
	internal.Use(middleware.InternalAuth(internalKey))
	internal.POST("/wallet/credit", c.Wallet.InternalCredit)

	admin := r.Group("/admin")
	admin.Use(middleware.AdminAuth(jwtSecret))
	admin.GET("/payouts", c.Payout.ListPayouts)
	admin.POST("/payouts/:id/approve", c.Payout.ApprovePayout)
	admin.POST("/payouts/:id/reject", c.Payout.RejectPayout)
}
