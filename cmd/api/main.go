package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"catalog-platform/internal/audit"
	"catalog-platform/internal/bootstrap"
	"catalog-platform/internal/config"
	"catalog-platform/internal/directory"
	"catalog-platform/internal/idp"
	"catalog-platform/internal/kvstore"
	"catalog-platform/internal/sessionmark"
	"catalog-platform/internal/tenant"
	"catalog-platform/internal/token"
	"catalog-platform/pkg/logger"
	"catalog-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional .env for local runs; real deployments inject env directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Shared state medium. Each process is one engine instance; the origin id
	// keeps it from observing its own writes.
	instanceID := uuid.NewString()
	var store kvstore.Store
	switch cfg.Store.Driver {
	case config.DriverRedis:
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		store = kvstore.NewRedisStore(rdb, kvstore.RedisStoreConfig{Origin: instanceID}, log)
	default:
		store = kvstore.NewMemory().Client(instanceID)
	}

	// Catalogue directory.
	var dir directory.Repo
	switch cfg.Directory.Driver {
	case config.DriverPostgres:
		var db *sql.DB
		db, err = utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			log.Error("postgres init failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		dir = directory.NewPGRepo(db)
	default:
		dir = directory.NewMemoryRepo(nil)
	}

	provider, err := idp.New(idp.Config{
		BaseURL:    cfg.IDP.BaseURL,
		AdminToken: cfg.IDP.AdminToken,
		Timeout:    cfg.IDP.Timeout,
	})
	if err != nil {
		log.Error("idp init failed", "err", err)
		os.Exit(1)
	}

	trail := audit.NewService(audit.NewMemoryRepo())
	marker := sessionmark.New(store, cfg.Session.StalenessWindow)
	flow := bootstrap.NewWorkflow(store, dir, log)
	locks := tenant.NewLockRegistry()

	manager := token.NewManager(provider, marker, token.Config{
		ReactiveMinValidity: cfg.Session.ReactiveMinValidity,
		PreventiveThreshold: cfg.Session.PreventiveThreshold,
		PreventivePeriod:    cfg.Session.PreventivePeriod,
	}, log)

	handlers := newHandlers(manager, locks, flow, provider)

	manager.OnForcedLogin(func() {
		log.Warn("silent renewal impossible, full login required")
		if err := trail.LogForcedLogin(context.Background(), currentEmail(manager)); err != nil {
			log.Warn("audit append failed", "err", err)
		}
	})
	manager.OnTokenChanged(func(t token.Token) {
		if err := trail.LogTokenRenewed(context.Background(), t.Claims.Subject, t.Claims.Email); err != nil {
			log.Warn("audit append failed", "err", err)
		}
	})
	manager.OnFreshLogin(func(ctx context.Context, claims token.Claims) {
		handlers.MarkLandingPending()
		if err := trail.LogFreshLogin(ctx, claims.Subject, claims.Email); err != nil {
			log.Warn("audit append failed", "err", err)
		}

		state, created, err := flow.Run(ctx, claims.Email, claims.GivenName, claims.FamilyName)
		if err != nil {
			log.Error("profile bootstrap failed", "state", state, "err", err)
			return
		}
		if created {
			if err := trail.LogProfileCreated(ctx, claims.Email); err != nil {
				log.Warn("audit append failed", "err", err)
			}
		}

		// Mirror the profile's tenant links onto the identity record for
		// downstream attribute-based access decisions.
		if p, ok, err := dir.FindByEmail(ctx, claims.Email); err == nil && ok {
			if err := provider.UpdateTenantAttribute(ctx, claims.Subject, p.TenantIDs); err != nil {
				log.Warn("tenant attribute mirror failed", "err", err)
			}
		}
	})

	authenticated, err := manager.Initialize(rootCtx)
	if err != nil {
		log.Error("authentication handshake failed", "err", err)
		os.Exit(1)
	}
	manager.Start(rootCtx)
	defer manager.Close()

	// The tenant context needs an identity scope; without a session it stays
	// uninitialized and the selection endpoints answer 401 via middleware.
	var tenants *tenant.ContextStore
	if authenticated {
		claims := manager.CurrentToken().Claims
		tenants = tenant.NewContextStore(store, directory.ScopedLister{
			Repo:  dir,
			Email: claims.Email,
			Admin: claims.IsAdmin(),
		}, log)
		if err := tenants.Init(rootCtx); err != nil {
			if errors.Is(err, tenant.ErrListUnavailable) {
				// Selection survives; a retry reloads the list.
				log.Warn("tenant list unavailable at startup", "err", err)
			} else {
				log.Error("tenant context init failed", "err", err)
				os.Exit(1)
			}
		}
		defer tenants.Close()

		tenants.OnChange(func(id string) {
			if err := trail.LogSelectionChanged(context.Background(), claims.Email, id); err != nil {
				log.Warn("audit append failed", "err", err)
			}
		})
		handlers.Tenants = tenants
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestLogger(log))

	registerRoutes(r, handlers, manager)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "authenticated", authenticated)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}

func currentEmail(m *token.Manager) string {
	if t := m.CurrentToken(); t != nil {
		return t.Claims.Email
	}
	return ""
}
