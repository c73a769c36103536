package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"khayalcare/internal/handlers"
	"khayalcare/internal/middleware"
)

func SetupRoutes(
	r *gin.Engine,
	authHandler *handlers.AuthHandler,
	verificationHandler *handlers.VerificationHandler,
	jwtSecret []byte,
) *gin.Engine {

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ---- public
	auth := r.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/register", verificationHandler.Register)
		auth.POST("/register/confirm", verificationHandler.ConfirmRegistration)
		auth.POST("/register/resend", verificationHandler.Resend)
		auth.POST("/password-reset/request", verificationHandler.RequestPasswordReset)
		auth.POST("/password-reset/verify", verificationHandler.VerifyPasswordReset)
	}

	// ---- protected
	protected := r.Group("/")
	protected.Use(middleware.AuthMiddleware(jwtSecret))
	{
		protected.GET("/users/me", authHandler.Me)
	}

	return r
}
