package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"innovatech/accounts/internal/config"
	"innovatech/accounts/internal/mail"
	"innovatech/accounts/internal/middleware"
	"innovatech/accounts/internal/otp"
	"innovatech/accounts/internal/repository"
	"innovatech/accounts/internal/security"
	"innovatech/accounts/internal/service"
)

type HandlerSet struct {
	log   zerolog.Logger
	cfg   *config.AppConfig
	auth  *service.AuthService
	users *service.UserService
	store service.UserStore
	db    *pgxpool.Pool
	cache *redis.Client
}

func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, cache *redis.Client, mailer mail.Sender, cfg *config.AppConfig) HandlerSet {
	userRepo := repository.NewUserRepository(db)
	activation := security.NewActivationTokens(cfg.Security.ActivationSecret, cfg.Security.ActivationTTL)
	otpService := otp.NewService(
		otp.NewRedisStore(cache),
		cfg.Security.OTPDigits,
		cfg.Security.OTPTTL,
		cfg.Security.OTPMaxAttempts,
	)

	auth := service.NewAuthService(userRepo, activation, otpService, mailer, cfg, log)
	users := service.NewUserService(userRepo, log)

	return HandlerSet{
		log:   log,
		cfg:   cfg,
		auth:  auth,
		users: users,
		store: userRepo,
		db:    db,
		cache: cache,
	}
}

func (h HandlerSet) Routes(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	router.POST("/user-register/", h.RegisterUser)
	router.GET("/activate/:uidb64/:token/", h.Activate)
	router.POST("/user-login/", h.Login)
	router.POST("/admin-login/", h.AdminLogin)
	router.POST("/otp-verify/", h.VerifyOTP)
	router.POST("/token-refresh/", h.RefreshToken)

	authed := router.Group("", middleware.Auth(h.cfg, h.store))

	authed.GET("/user-list/", middleware.RequireStaff(), h.ListUsers)

	detail := authed.Group("/user-detail", middleware.RequireOwnerOrStaff("id"))
	detail.GET("/:id/", h.GetUser)
	detail.PUT("/:id/", h.UpdateUser)
	detail.PATCH("/:id/", h.UpdateUser)
	detail.DELETE("/:id/", h.DeleteUser)
}
