// Command customersms runs the customer management HTTP API.
//
// @title                       Customer Management API
// @version                     1.0
// @description                 Authentication, user administration and role grants for the customer management backend.
// @BasePath                    /api/v1
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Type "Bearer" followed by a space and the session token.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/customersms/customer-service/internal/api"
	"github.com/customersms/customer-service/internal/core/service"
	mongodb "github.com/customersms/customer-service/internal/infrastructure/db/mongo"
	redisdb "github.com/customersms/customer-service/internal/infrastructure/db/redis"
	"github.com/customersms/customer-service/internal/infrastructure/http/handlers"
	"github.com/customersms/customer-service/internal/infrastructure/queue"
	"github.com/customersms/customer-service/internal/pkg/config"
	"github.com/customersms/customer-service/internal/pkg/token"
	"github.com/customersms/customer-service/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		// The logger may not exist yet when configuration fails.
		l := zerolog.New(os.Stderr).With().Timestamp().Logger()
		l.Fatal().Err(err).Msg("customersms stopped")
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "customersms",
	})

	client, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		Timeout:  cfg.Mongo.Timeout,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := mongodb.Disconnect(context.Background(), client); err != nil {
			log.Error().Err(err).Msg("mongo disconnect")
		}
	}()

	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	defer rdb.Close()

	users := mongodb.NewUserRepository(db)
	roleRepo := mongodb.NewRoleRepository(db)
	audit := mongodb.NewGrantAuditRepository(db)

	for name, ensure := range map[string]func(context.Context) error{
		"users":             users.EnsureIndexes,
		"roles":             roleRepo.EnsureIndexes,
		"role_grant_events": audit.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			return fmt.Errorf("ensure indexes on %s: %w", name, err)
		}
	}

	// Stop runs before the mongo disconnect, so queued audit events are written.
	auditQueue := queue.NewDispatcher(cfg.Audit.Workers, audit, logger.Component("audit"))
	auditQueue.Start(context.Background())
	defer auditQueue.Stop()

	tokens := token.NewManager(cfg.JWT.Secret, cfg.JWT.TTL, cfg.JWT.Issuer)
	roles := service.NewRoleService(roleRepo, service.NewRoleCache(cfg.RoleCache.Size, cfg.RoleCache.TTL), logger.Component("roles"))
	throttle := redisdb.NewLoginThrottle(rdb, cfg.Auth.LoginMaxAttempts, cfg.Auth.LoginLockout)

	authService := service.NewAuthService(users, roleRepo, roles, tokens, throttle, cfg.Auth.BcryptCost, logger.Component("auth"))
	userService := service.NewUserService(users, roles, cfg.Auth.BcryptCost, logger.Component("users"))
	grantService := service.NewRoleAssignmentService(users, roleRepo, roles, mongodb.NewTransactor(client), auditQueue, logger.Component("grants"))

	if err := authService.InitDefaultRoles(ctx); err != nil {
		return err
	}

	e := api.NewRouter(api.Deps{
		Auth:     authService,
		Users:    userService,
		Roles:    roles,
		Grants:   grantService,
		Verifier: tokens,
		Readiness: map[string]handlers.Check{
			"mongodb": handlers.MongoCheck(db),
			"redis":   handlers.RedisCheck(rdb),
		},
		Logger: logger.Component("http"),
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("customersms listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
