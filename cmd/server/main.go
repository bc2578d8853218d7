package main

import (
	"fmt"
	"log"
	"net/http"

	"redbud/internal/api"
	"redbud/internal/api/handlers"
	"redbud/internal/api/middleware"
	"redbud/internal/engine/fields"
	"redbud/internal/engine/invites"
	"redbud/internal/engine/permissions"
	"redbud/internal/engine/records"
	"redbud/internal/pkg/logger"
	"redbud/internal/platform/audit"
	"redbud/internal/platform/auth"
	"redbud/internal/platform/config"
	"redbud/internal/platform/database"
	"redbud/internal/platform/repositories"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.Logging)

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Repositories
	orgRepo := repositories.NewOrganizationRepository(db)
	userRepo := repositories.NewUserRepository(db)
	membershipRepo := repositories.NewMembershipRepository(db)
	inviteRepo := repositories.NewInviteRepository(db)

	// Services
	tokenSvc := auth.NewTokenService(cfg.JWT)
	perms := permissions.NewEvaluator(membershipRepo)
	auditLog := audit.NewLogger(db)
	fieldSvc := fields.NewService(fields.NewRepository(db))
	recordSvc := records.NewService(records.NewRepository(db), fieldSvc, perms)
	inviteSvc := invites.NewService(inviteRepo, membershipRepo, userRepo, orgRepo, perms, cfg.Invites)

	// Handlers
	authHandler := handlers.NewAuthHandler(userRepo, orgRepo, inviteSvc, tokenSvc)
	orgHandler := handlers.NewOrgHandler(orgRepo, membershipRepo, userRepo, perms, auditLog)
	inviteHandler := handlers.NewInviteHandler(inviteSvc, auditLog)
	fieldHandler := handlers.NewFieldHandler(fieldSvc, perms, auditLog)
	recordHandler := handlers.NewRecordHandler(recordSvc)
	userHandler := handlers.NewUserHandler(userRepo, perms)
	healthHandler := handlers.NewHealthHandler(db)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenSvc, userRepo)
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit)

	router := api.NewRouter(&api.Dependencies{
		AuthHandler:    authHandler,
		OrgHandler:     orgHandler,
		InviteHandler:  inviteHandler,
		FieldHandler:   fieldHandler,
		RecordHandler:  recordHandler,
		UserHandler:    userHandler,
		HealthHandler:  healthHandler,
		AuthMiddleware: authMiddleware,
		RateLimiter:    rateLimiter,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	log.Printf("Server starting on %s", addr)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
