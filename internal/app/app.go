package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"khayalcare/internal/config"
	"khayalcare/internal/handlers"
	"khayalcare/internal/repositories"
	"khayalcare/internal/routes"
	"khayalcare/internal/services"
	"khayalcare/internal/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	_ "khayalcare/docs"
)

func Run() {
	cfg := config.LoadConfig()

	// === DB ===
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatal("Ошибка подключения к БД: ", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Ошибка закрытия БД: %v", err)
		}
	}()

	// === Repos ===
	userRepo := repositories.NewUserRepository(db)
	verificationRepo := repositories.NewVerificationRepository(db)
	dailyRepo := repositories.NewDailyAttemptRepository(db)
	restrictionRepo := repositories.NewRestrictionRepository(db)

	// === Services ===
	vcfg := cfg.Verification
	codeTTL := time.Duration(vcfg.CodeTTLMinutes) * time.Minute
	cooldown := time.Duration(vcfg.ResendCooldownMinutes) * time.Minute

	authService := services.NewAuthService(
		[]byte(cfg.Auth.JWTSecret),
		time.Duration(cfg.Auth.TokenTTLHours)*time.Hour,
	)
	emailService := services.NewEmailService(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Email.SMTPUser,
		cfg.Email.SMTPPassword,
		cfg.Email.FromEmail,
	)
	whatsappClient := utils.NewWhatsAppClient(
		cfg.WhatsApp.InstanceID,
		cfg.WhatsApp.Token,
		cfg.WhatsApp.DryRun,
	)
	alertService := services.NewAlertService(cfg.Telegram.BotToken, cfg.Telegram.AlertChatID)

	dispatcher := services.NewNotificationDispatcher(
		emailService,
		whatsappClient,
		time.Duration(vcfg.DispatchTimeoutSeconds)*time.Second,
		codeTTL,
	)
	abuseGuard := services.NewAbuseGuard(
		restrictionRepo,
		dailyRepo,
		alertService,
		vcfg.MaxDailyAttempts,
		time.Duration(vcfg.RestrictionDays)*24*time.Hour,
	)
	verificationService := services.NewVerificationService(
		verificationRepo,
		abuseGuard,
		dispatcher,
		codeTTL,
		cooldown,
		vcfg.MaxWrongAttempts,
	)
	userService := services.NewUserService(userRepo, emailService, authService)

	// === Cleanup ===
	cleanup := services.NewCleanupService(
		verificationRepo,
		dailyRepo,
		time.Duration(vcfg.CleanupIntervalMinutes)*time.Minute,
	)
	cleanupCtx, cancelCleanup := context.WithCancel(context.Background())
	defer cancelCleanup()
	go cleanup.Run(cleanupCtx)

	// === Handlers ===
	authHandler := handlers.NewAuthHandler(userService, authService)
	verificationHandler := handlers.NewVerificationHandler(
		verificationService,
		userService,
		authService,
		vcfg.CodeTTLMinutes,
		vcfg.ResendCooldownMinutes,
		vcfg.MaxDailyAttempts,
	)

	// === Gin ===
	router := gin.Default()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// Swagger
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	routes.SetupRoutes(router, authHandler, verificationHandler, []byte(cfg.Auth.JWTSecret))

	// === Run ===
	listenAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Сервер запущен на %s", listenAddr)
	if err := router.Run(listenAddr); err != nil {
		log.Fatal("Ошибка запуска сервера: ", err)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
