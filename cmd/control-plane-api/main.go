package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"
	"golang.org/x/sync/errgroup"

	"github.com/edvin/agentplane/internal/api"
	"github.com/edvin/agentplane/internal/authz"
	"github.com/edvin/agentplane/internal/config"
	"github.com/edvin/agentplane/internal/core"
	"github.com/edvin/agentplane/internal/db"
	"github.com/edvin/agentplane/internal/logging"
	"github.com/edvin/agentplane/internal/metrics"
	"github.com/edvin/agentplane/internal/tracing"
)

func main() {
	if len(os.Args) >= 2 && os.Args[1] == "issue-token" {
		issueToken(os.Args[2:])
		return
	}

	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	if *migrateFlag {
		logger.Info().Msg("running database migrations")
		if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("control plane exited")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx)

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.OTelEndpoint,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown tracing")
		}
	}()

	// Authorization and identity are resolved before any connection is opened.
	authorizer, err := newAuthorizer(cfg)
	if err != nil {
		return err
	}
	if authorizer.Mode() != authz.ModeEnforce {
		logger.Warn().Str("mode", string(authorizer.Mode())).Msg("authorization is not enforced")
	}

	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		return err
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()
	if err := metrics.RegisterPgxPoolMetrics(prometheus.DefaultRegisterer, pool); err != nil {
		return fmt.Errorf("register pool metrics: %w", err)
	}

	opts := core.Options{InstanceTransitions: core.TransitionPolicy(cfg.InstanceTransitions)}

	opts.Gate, err = core.NewPromotionGate(cfg.PromotionGateExpr)
	if err != nil {
		return err
	}
	if cfg.PromotionGateExpr != "" {
		logger.Info().Str("expr", cfg.PromotionGateExpr).Msg("promotion gate expression enabled")
	}

	if cfg.RedisAddr != "" {
		tlsConfig, err := cfg.RedisTLS()
		if err != nil {
			return fmt.Errorf("configure redis TLS: %w", err)
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			TLSConfig: tlsConfig,
		})
		publisher := core.NewRedisPublisher(rdb, cfg.RedisChannel)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
		opts.Publisher = publisher
		logger.Info().Str("addr", cfg.RedisAddr).Str("channel", cfg.RedisChannel).Msg("event publication enabled")
	}

	var tc temporalclient.Client
	if cfg.TemporalAddress != "" {
		tlsConfig, err := cfg.TemporalTLS()
		if err != nil {
			return fmt.Errorf("configure temporal TLS: %w", err)
		}
		dialOpts := temporalclient.Options{HostPort: cfg.TemporalAddress, Namespace: cfg.TemporalNamespace}
		if tlsConfig != nil {
			dialOpts.ConnectionOptions = temporalclient.ConnectionOptions{TLS: tlsConfig}
			logger.Info().Msg("temporal mTLS enabled")
		}
		tc, err = temporalclient.Dial(dialOpts)
		if err != nil {
			return fmt.Errorf("connect to temporal: %w", err)
		}
		defer tc.Close()
		opts.Dispatcher = core.NewTemporalDispatcher(tc, cfg.EvaluationTaskQueue)
		logger.Info().Str("task_queue", cfg.EvaluationTaskQueue).Msg("evaluation hand-off enabled")
	}

	srv := api.NewServer(logger, api.Deps{
		Services:       core.NewServices(db.NewTenantStore(pool), opts),
		Verifier:       verifier,
		Authorizer:     authorizer,
		DB:             pool,
		TemporalClient: tc,
		CORSOrigins:    cfg.CORSOrigins,
	})

	httpServer := &http.Server{
		Addr:         cfg.HTTPListenAddr,
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Msg("starting control plane API server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func newAuthorizer(cfg *config.Config) (*authz.Authorizer, error) {
	mode := authz.Mode(cfg.AuthzMode)
	if cfg.AuthzModelPath != "" {
		return authz.NewFromFiles(cfg.AuthzModelPath, cfg.AuthzPolicyPath, mode)
	}
	return authz.New(mode)
}

func claimOptions(cfg *config.Config) core.ClaimOptions {
	return core.ClaimOptions{
		Issuer:      cfg.JWTIssuer,
		Audience:    cfg.JWTAudience,
		TenantClaim: cfg.TenantClaim,
		DefaultRole: cfg.DefaultRole,
	}
}

func newVerifier(ctx context.Context, cfg *config.Config) (core.TokenVerifier, error) {
	if cfg.AuthMode == config.AuthModeOIDC {
		return core.NewOIDCVerifier(ctx, cfg.OIDCIssuerURL, cfg.OIDCClientID, claimOptions(cfg))
	}
	return core.NewHMACVerifier(cfg.JWTSecret, claimOptions(cfg)), nil
}

// issueToken mints a development token signed with JWT_SECRET.
func issueToken(args []string) {
	fs := flag.NewFlagSet("issue-token", flag.ExitOnError)
	tenant := fs.String("tenant", "", "Tenant UUID (required)")
	sub := fs.String("sub", "", "Token subject")
	roles := fs.String("roles", "operator", "Comma-separated roles")
	ttl := fs.Duration("ttl", time.Hour, "Token lifetime")
	fs.Parse(args)

	if *tenant == "" {
		fmt.Fprintln(os.Stderr, "error: --tenant is required")
		fmt.Fprintln(os.Stderr, "usage: control-plane-api issue-token --tenant <uuid> [--sub <subject>] [--roles a,b] [--ttl 1h]")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	if len(cfg.JWTSecret) < 32 {
		fmt.Fprintln(os.Stderr, "error: JWT_SECRET must be set to at least 32 bytes")
		os.Exit(1)
	}

	var roleList []string
	for _, r := range strings.Split(*roles, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roleList = append(roleList, r)
		}
	}

	verifier := core.NewHMACVerifier(cfg.JWTSecret, claimOptions(cfg))
	token, err := verifier.Issue(core.Principal{TenantID: *tenant, Subject: *sub, Roles: roleList}, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
