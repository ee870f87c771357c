package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quasaranchor/anchor"
	"github.com/quasaranchor/anchor/core/account"
	"github.com/quasaranchor/anchor/core/net"
	"github.com/quasaranchor/anchor/core/toml"
	"github.com/quasaranchor/anchor/engine"
	"github.com/quasaranchor/anchor/internal/config"
	"github.com/quasaranchor/anchor/internal/httpapi"
	"github.com/quasaranchor/anchor/internal/logging"
	"github.com/quasaranchor/anchor/internal/metrics"
	"github.com/quasaranchor/anchor/observer"
	"github.com/quasaranchor/anchor/signers"
	"github.com/quasaranchor/anchor/store/memory"
)

// nonceTTL is spec.md §4.2.1/§9's 5-minute challenge nonce lifetime.
const nonceTTL = 5 * time.Minute

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the anchor HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(parentCtx context.Context) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	logging.Init(logging.Config{Env: cfg.LogEnv, Level: cfg.LogLevel, ServiceName: "anchor"})
	defer logging.Sync()
	log := logging.L()

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}

	signer, err := signers.FromSecret(cfg.SecretKey)
	if err != nil {
		return err
	}

	nonceStore := memory.NewNonceStore(nonceTTL)
	defer nonceStore.Stop()

	jwt, err := engine.NewJWT(cfg.JWTSecret, cfg.Domain)
	if err != nil {
		return err
	}

	var accountFetcher anchor.AccountFetcher
	if cfg.HorizonURL != "" {
		accountFetcher = net.NewBoundedFetcher(account.NewHorizonFetcher(cfg.HorizonURL))
	}

	authIssuer, err := engine.NewAuthIssuer(engine.AuthConfig{
		Domain:            cfg.Domain,
		NetworkPassphrase: cfg.NetworkPassphrase(),
		Signer:            signer,
		NonceStore:        nonceStore,
		JWTIssuer:         jwt,
		JWTVerifier:       jwt,
		AccountFetcher:    accountFetcher,
	})
	if err != nil {
		return err
	}

	hooks := engine.NewHookRegistry()
	registerLifecycleHooks(hooks, log)

	assets := cfg.AssetSet()
	transferStore := memory.NewTransferStore()
	tm := engine.NewTransferManager(transferStore, assets, engine.Config{
		Domain:         cfg.Domain,
		SigningAccount: signer.PublicKey(),
	}, hooks, engine.SEP24Hooks{InteractiveURL: cfg.InteractiveBaseURL}, engine.SEP6Hooks{})

	publisher := toml.NewPublisher(cfg.PublisherConfig())

	router := httpapi.NewRouter(httpapi.Modules{
		Discovery: httpapi.NewDiscoveryModule(publisher),
		Auth:      httpapi.NewAuthModule(authIssuer, cfg.NetworkPassphrase()),
		SEP24:     httpapi.NewSEP24Module(tm, authIssuer, assets),
		SEP6:      httpapi.NewSEP6Module(tm, authIssuer, assets),
	}, publisher)

	stopSettlement := startSettlementReporter(cfg, tm, log)
	defer stopSettlement()

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: router}

	ctx, stop := signal.NotifyContext(parentCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("anchor listening", zap.String("addr", cfg.ListenAddr), zap.String("domain", cfg.Domain))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, draining in-flight requests")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

// startSettlementReporter wires the optional out-of-scope settlement
// pipeline (SPEC_FULL §11.1): when enabled, it streams Horizon payments
// to the operator's distribution account and reports matches back into
// tm via UpdateStatus. Returns a stop function that is always safe to
// call, including when settlement was never started.
func startSettlementReporter(cfg *config.Config, tm *engine.TransferManager, log *zap.Logger) func() {
	if !cfg.Settlement.Enabled {
		return func() {}
	}

	initialBackoff, maxBackoff, err := cfg.Settlement.ReconnectBackoff()
	if err != nil {
		log.Error("settlement reporter wiring failed, continuing without it", zap.Error(err))
		return func() {}
	}

	obs := observer.NewHorizonObserver(cfg.Settlement.HorizonURL,
		observer.WithLogger(log),
		observer.WithCursor("now"),
		observer.WithReconnectBackoff(initialBackoff, maxBackoff),
	)
	if err := observer.AutoMatchPayments(obs, tm, cfg.Settlement.DistributionAccount, log); err != nil {
		log.Error("settlement reporter wiring failed, continuing without it", zap.Error(err))
		return func() {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := obs.Start(ctx); err != nil {
			log.Error("settlement reporter stopped", zap.Error(err))
		}
	}()

	return func() {
		cancel()
		_ = obs.Stop()
	}
}
