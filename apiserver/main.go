package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/taskfolio/taskfolio-go/internal/auditexport"
	"github.com/taskfolio/taskfolio-go/internal/platform/auditlog"
	"github.com/taskfolio/taskfolio-go/internal/platform/auth"
	"github.com/taskfolio/taskfolio-go/internal/platform/env"
	"github.com/taskfolio/taskfolio-go/internal/platform/httpserver"
	"github.com/taskfolio/taskfolio-go/internal/platform/objectstore"
	"github.com/taskfolio/taskfolio-go/internal/platform/postgres"
	repopg "github.com/taskfolio/taskfolio-go/internal/repo/postgres"
	listsvc "github.com/taskfolio/taskfolio-go/internal/service/lists"
	tasksvc "github.com/taskfolio/taskfolio-go/internal/service/tasks"
)

const serviceName = "taskfolio-api"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := env.String("TASKFOLIO_HTTP_ADDR", ":8080")
	shutdownTimeout, err := env.Duration("TASKFOLIO_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}

	dbCfg, err := postgres.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid database config", "error", err)
		os.Exit(2)
	}
	db, err := postgres.Open(ctx, dbCfg)
	if err != nil {
		logger.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	authCfg, err := auth.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid auth config", "error", err)
		os.Exit(2)
	}

	exportCfg, err := auditexport.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid audit export config", "error", err)
		os.Exit(2)
	}

	var exporter auditexport.Exporter
	var archive *auditexport.ArchiveExporter
	readiness := []httpserver.ReadinessCheck{
		{
			Name: "postgres",
			Check: func(ctx context.Context) error {
				checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
				defer cancel()
				return db.PingContext(checkCtx)
			},
		},
	}
	if exportCfg.Destination == "archive" {
		storeCfg, err := objectstore.ConfigFromEnv()
		if err != nil {
			logger.Error("invalid object store config", "error", err)
			os.Exit(2)
		}
		storeClient, err := objectstore.NewMinIOClient(storeCfg)
		if err != nil {
			logger.Error("object store client init failed", "error", err)
			os.Exit(2)
		}
		startupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := objectstore.EnsureBuckets(startupCtx, storeClient, storeCfg); err != nil {
			cancel()
			logger.Error("object store unavailable", "error", err)
			os.Exit(1)
		}
		cancel()

		archive = auditexport.NewArchiveExporter(storeClient, storeCfg.BucketAudit, exportCfg.BatchSize)
		exporter = archive
		readiness = append(readiness, httpserver.ReadinessCheck{
			Name: "minio",
			Check: func(ctx context.Context) error {
				checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
				defer cancel()
				return objectstore.CheckBuckets(checkCtx, storeClient, storeCfg)
			},
		})
	}

	listStore := repopg.NewListStore(db)
	taskStore := repopg.NewTaskStore(db)
	clientStore := repopg.NewClientStore(db)
	auditAppender := repopg.NewAuditAppender(db, exporter)

	listService := listsvc.New(logger, listStore, auditAppender)
	taskService := tasksvc.New(logger, listStore, taskStore, auditAppender)

	if err := seedClients(ctx, logger, env.String("TASKFOLIO_SEED_CLIENTS_FILE", ""), clientStore); err != nil {
		logger.Error("seed clients failed", "error", err)
		os.Exit(1)
	}

	authenticator, oidcSvc, err := buildAuthenticator(ctx, authCfg)
	if err != nil {
		logger.Error("auth init failed", "error", err)
		os.Exit(2)
	}

	api := newTaskfolioAPI(logger, listService, taskService, clientStore, authCfg)
	api.openapi, err = loadOpenAPI(ctx)
	if err != nil {
		logger.Error("openapi init failed", "error", err)
		os.Exit(2)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httpserver.Healthz(serviceName))
	mux.HandleFunc("/readyz", httpserver.ReadyzWithChecks(serviceName, readiness...))
	api.register(mux)

	skipPrefixes := []string{"/healthz", "/readyz", "/openapi.json", "/v1/auth/token"}
	if oidcSvc != nil {
		sessionPaths, err := registerSessionRoutes(mux, oidcSvc, authCfg, logger)
		if err != nil {
			logger.Error("session route init failed", "error", err)
			os.Exit(2)
		}
		skipPrefixes = append(skipPrefixes, sessionPaths...)
	}

	handler := auth.Middleware{
		Logger:        logger,
		Authenticator: authenticator,
		Authorize:     auth.MethodRoleAuthorizer(),
		Audit: func(ctx context.Context, event auth.DenyEvent) error {
			auditCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
			defer cancel()
			return auditlog.InsertAuthDeny(auditCtx, db, serviceName, event)
		},
		SkipPrefixes: skipPrefixes,
	}.Wrap(mux)

	cfg := httpserver.Config{
		Service:         serviceName,
		Addr:            addr,
		ShutdownTimeout: shutdownTimeout,
	}

	if err := httpserver.Run(ctx, logger, cfg, httpserver.Wrap(logger, serviceName, handler)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	if archive != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := archive.Flush(flushCtx); err != nil {
			logger.Error("audit archive flush failed", "error", err)
		}
	}
}

func buildAuthenticator(ctx context.Context, cfg auth.Config) (auth.Authenticator, *auth.OIDCService, error) {
	switch cfg.Mode {
	case auth.ModeToken:
		return auth.ServiceTokenAuthenticator{Secret: cfg.TokenSecret}, nil, nil
	case auth.ModeOIDC:
		oidcSvc, err := auth.NewOIDCService(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if strings.TrimSpace(cfg.TokenSecret) != "" {
			return auth.ServiceTokenAuthenticator{Secret: cfg.TokenSecret, Next: oidcSvc}, oidcSvc, nil
		}
		return oidcSvc, oidcSvc, nil
	case auth.ModeDev:
		return auth.NewDevAuthenticator(cfg), nil, nil
	case auth.ModeDisabled:
		anon := cfg
		anon.DevSubject = "anonymous"
		anon.DevEmail = ""
		anon.DevRoles = []string{auth.RoleAdmin}
		return auth.NewDevAuthenticator(anon), nil, nil
	default:
		return nil, nil, errors.New("unsupported auth mode")
	}
}

// registerSessionRoutes mounts the browser login surface. Login and callback
// need the client secret and redirect URL; without them the server still runs
// bearer-only and only logout and session introspection are mounted.
func registerSessionRoutes(mux *http.ServeMux, svc *auth.OIDCService, cfg auth.Config, logger *slog.Logger) ([]string, error) {
	paths := []string{"/v1/auth/logout", "/v1/auth/session"}
	mux.HandleFunc("POST /v1/auth/logout", svc.LogoutHandler())
	mux.HandleFunc("GET /v1/auth/session", svc.SessionHandler())

	if err := cfg.ValidateForLogin(); err != nil {
		logger.Warn("login endpoints disabled", "error", err)
		return paths, nil
	}

	login, err := svc.LoginHandler()
	if err != nil {
		return nil, err
	}
	callback, err := svc.CallbackHandler()
	if err != nil {
		return nil, err
	}
	mux.HandleFunc("GET /v1/auth/login", login)
	mux.HandleFunc("GET /v1/auth/callback", callback)
	return append(paths, "/v1/auth/login", "/v1/auth/callback"), nil
}
