package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cliniflow/platform/pkg/auth"
	"github.com/cliniflow/platform/pkg/common/config"
	"github.com/cliniflow/platform/pkg/common/database"
	"github.com/cliniflow/platform/pkg/common/kafka"
	"github.com/cliniflow/platform/pkg/common/logger"
	"github.com/cliniflow/platform/pkg/common/models"
	"github.com/cliniflow/platform/pkg/gateway/middleware"
	"github.com/cliniflow/platform/pkg/identity"
	"github.com/cliniflow/platform/pkg/patients"
	"github.com/cliniflow/platform/pkg/prescriptions"
	"github.com/cliniflow/platform/pkg/registry"
	"github.com/cliniflow/platform/pkg/seed"
	"github.com/gorilla/mux"
)

func main() {
	logger.Init()
	cfg := config.Load()

	clinicZone, err := time.LoadLocation(cfg.ClinicTimezone)
	if err != nil {
		logger.Log.WithError(err).WithField("zone", cfg.ClinicTimezone).Fatal("invalid clinic timezone")
	}

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	identityRepo := identity.NewRepository(db)
	registryRepo := registry.NewRepository(db)
	patientRepo := patients.NewRepository(db)
	prescriptionRepo := prescriptions.NewRepository(db)

	// Registry and identity tables first; patient and prescription relations
	// reference them.
	migrations := []struct {
		name string
		run  func() error
	}{
		{"registry", registryRepo.AutoMigrate},
		{"identity", identityRepo.AutoMigrate},
		{"patients", patientRepo.AutoMigrate},
		{"prescriptions", prescriptionRepo.AutoMigrate},
	}
	for _, m := range migrations {
		if err := m.run(); err != nil {
			logger.Log.WithError(err).WithField("domain", m.name).Fatal("failed to migrate tables")
		}
	}

	events := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer events.Close()

	redisClient := database.GetRedis()
	defer database.CloseRedis()

	tokens, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTTTL)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to set up token manager")
	}

	identityService := identity.NewService(identityRepo, registryRepo, events)
	registryService := registry.NewService(registryRepo, redisClient, cfg.ReferenceCacheTTL)
	patientService := patients.NewService(patientRepo, identityRepo, registryRepo, prescriptionRepo, events, clinicZone)
	prescriptionService := prescriptions.NewService(prescriptionRepo, registryRepo, patientRepo, events)

	if cfg.SeedFile != "" {
		seedFile, err := seed.Load(cfg.SeedFile)
		if err != nil {
			logger.Log.WithError(err).WithField("path", cfg.SeedFile).Fatal("failed to load seed file")
		}
		if err := seed.Apply(context.Background(), seedFile, identityService, registryService, registryRepo); err != nil {
			logger.Log.WithError(err).Fatal("failed to apply seed file")
		}
	}

	identityHandler := identity.NewHandler(identityService, tokens)
	registryHandler := registry.NewHandler(registryService)
	patientHandler := patients.NewHandler(patientService, identityService)
	prescriptionHandler := prescriptions.NewHandler(prescriptionService, identityService)

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)
	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(
		middleware.Logging,
		middleware.Recovery,
		middleware.CORS,
		middleware.BodyLimit(cfg.MaxRequestBody),
		middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	authRouter := api.PathPrefix("/auth").Subrouter()
	identityHandler.RegisterAuth(authRouter)

	adminRouter := api.PathPrefix("/admin").Subrouter()
	adminRouter.Use(middleware.Authenticate(tokens), middleware.RequireRoles(models.RoleAdmin))
	identityHandler.RegisterAdmin(adminRouter)
	patientHandler.RegisterAdmin(adminRouter)
	registryHandler.RegisterAdmin(adminRouter)

	medicineAdmin := api.PathPrefix("/medicine").Subrouter()
	medicineAdmin.Use(middleware.Authenticate(tokens), middleware.RequireRoles(models.RoleAdmin))
	medicineShared := api.PathPrefix("/medicine").Subrouter()
	medicineShared.Use(middleware.Authenticate(tokens), middleware.RequireRoles(models.RoleAdmin, models.RoleDoctor))
	registryHandler.RegisterMedicine(medicineAdmin, medicineShared)

	doctorRouter := api.PathPrefix("/doctor").Subrouter()
	doctorRouter.Use(middleware.Authenticate(tokens), middleware.RequireRoles(models.RoleDoctor))
	patientHandler.RegisterDoctor(doctorRouter)
	prescriptionHandler.RegisterDoctor(doctorRouter)

	address := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithField("addr", address).Info("Clinic server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start clinic server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down clinic server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("clinic server forced to shutdown")
	}
	if err := database.ClosePostgres(); err != nil {
		logger.Log.WithError(err).Error("failed to close postgres")
	}
	logger.Log.Info("Clinic server stopped")
}
