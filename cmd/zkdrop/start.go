package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/zkdrop/zkdrop-node/internal/airdrop"
	aphysical "github.com/zkdrop/zkdrop-node/internal/airdrop/physical"
	_ "github.com/zkdrop/zkdrop-node/internal/airdrop/physical/memory"
	_ "github.com/zkdrop/zkdrop-node/internal/airdrop/physical/sqlite"
	"github.com/zkdrop/zkdrop-node/internal/claims"
	"github.com/zkdrop/zkdrop-node/internal/config"
	"github.com/zkdrop/zkdrop-node/internal/events"
	"github.com/zkdrop/zkdrop-node/internal/ledger"
	"github.com/zkdrop/zkdrop-node/internal/membership"
	"github.com/zkdrop/zkdrop-node/internal/nullifier"
	nphysical "github.com/zkdrop/zkdrop-node/internal/nullifier/physical"
	_ "github.com/zkdrop/zkdrop-node/internal/nullifier/physical/badger"
	_ "github.com/zkdrop/zkdrop-node/internal/nullifier/physical/memory"
	"github.com/zkdrop/zkdrop-node/internal/observability"
	"github.com/zkdrop/zkdrop-node/internal/rootledger"
	"github.com/zkdrop/zkdrop-node/internal/server"
	"github.com/zkdrop/zkdrop-node/internal/verifier"
	"github.com/zkdrop/zkdrop-node/pkg/types"
)

func newStartCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the zkdrop node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd, v)
		},
	}
	config.BindStartFlags(cmd, v)
	return cmd
}

func runStart(cmd *cobra.Command, v *viper.Viper) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obs, err := observability.New(ctx, observability.ObsConfig{
		LogLevel:       cfg.Observability.LogLevel,
		LogFormat:      cfg.Observability.LogFormat,
		OTLPEndpoint:   cfg.Observability.OTLPEndpoint,
		OTLPProtocol:   cfg.Observability.OTLPProtocol,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
	}, os.Stderr)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	obs.ServeMetrics(ctx, cfg.Observability.MetricsAddr)

	roots := rootledger.New(
		rootledger.WithValidityWindow(cfg.Claims.RootValidityWindow),
		rootledger.WithHistorySize(cfg.Claims.RootHistorySize),
		rootledger.WithMetrics(obs.Metrics),
	)
	groups := membership.NewService(roots, obs.Metrics, slog.Default())

	bus := events.NewBus(
		events.WithLogger(slog.Default()),
		events.WithMetrics(obs.Metrics),
	)
	obs.Shutdown.Register("events", func(ctx context.Context) error {
		bus.Close()
		return nil
	})

	nullifierBackend, err := nphysical.New(
		ctx,
		cfg.Storage.Nullifier.Backend,
		backendConfig(cfg.Storage.Nullifier.Config, cfg.DataDir, "nullifiers"),
	)
	if err != nil {
		return fmt.Errorf("init nullifier backend: %w", err)
	}
	nullifiers := nullifier.New(nullifierBackend, obs.Metrics)
	obs.Shutdown.Register("nullifiers", func(ctx context.Context) error {
		return nullifiers.Close()
	})

	airdropStore, err := aphysical.New(
		ctx,
		cfg.Storage.Airdrop.Backend,
		backendConfig(cfg.Storage.Airdrop.Config, cfg.DataDir, "airdrops.db"),
	)
	if err != nil {
		return fmt.Errorf("init airdrop store: %w", err)
	}
	airdrops := airdrop.New(airdropStore, bus, obs.Metrics, slog.Default())
	obs.Shutdown.Register("airdrops", func(ctx context.Context) error {
		return airdrops.Close()
	})

	slog.Info("storage initialized",
		"nullifier_backend", cfg.Storage.Nullifier.Backend,
		"airdrop_backend", cfg.Storage.Airdrop.Backend,
	)

	proofVerifier, err := buildVerifier(cfg.Verifier, obs.Metrics)
	if err != nil {
		return err
	}

	spender, err := spenderAddress(cfg.Claims.Spender)
	if err != nil {
		return err
	}

	tokens := ledger.NewMemory()

	engine, err := claims.NewEngine(claims.Config{
		Airdrops:   airdrops,
		Roots:      roots,
		Verifier:   proofVerifier,
		Nullifiers: nullifiers,
		Tokens:     tokens,
		Bus:        bus,
		Spender:    spender,
		Metrics:    obs.Metrics,
		Logger:     slog.Default(),
	})
	if err != nil {
		return fmt.Errorf("create claim engine: %w", err)
	}

	srv := server.New(airdrops, engine, groups, server.Options{
		Addr:            cfg.HTTP.Addr,
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		Logger:          slog.Default(),
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http shutdown error", "error", err)
		}
		return obs.Close(shutdownCtx)
	})

	slog.Info("serving",
		"addr", srv.Addr(),
		"metrics", cfg.Observability.MetricsAddr,
		"verifier", cfg.Verifier.Mode,
	)
	return g.Wait()
}

// backendConfig defaults the backend's path into the data directory when
// the config does not pin one.
func backendConfig(cfg map[string]string, dataDir, name string) map[string]string {
	merged := make(map[string]string, len(cfg)+1)
	for k, v := range cfg {
		merged[k] = v
	}
	if _, ok := merged["path"]; !ok && dataDir != "" {
		merged["path"] = filepath.Join(dataDir, name)
	}
	return merged
}

func buildVerifier(cfg config.VerifierConfig, metrics *observability.Metrics) (verifier.Verifier, error) {
	switch cfg.Mode {
	case "groth16", "":
		if cfg.VKPath == "" {
			return nil, fmt.Errorf("verifier.vk_path required in groth16 mode")
		}
		vk, err := verifier.LoadVerifyingKey(cfg.VKPath)
		if err != nil {
			return nil, fmt.Errorf("load verifying key: %w", err)
		}
		g, err := verifier.NewGroth16(vk,
			verifier.WithCacheSize(cfg.CacheSize),
			verifier.WithMetrics(metrics),
		)
		if err != nil {
			return nil, err
		}
		return g, nil
	case "static":
		slog.Warn("static verifier rejects every proof until tuples are allowed; development only")
		return verifier.NewStatic(), nil
	default:
		return nil, fmt.Errorf("unknown verifier mode %q", cfg.Mode)
	}
}

func spenderAddress(s string) (types.Address, error) {
	if s == "" {
		// Stable non-zero default for single-node deployments.
		return types.BytesToAddress([]byte{1}), nil
	}
	addr, err := types.HexToAddress(s)
	if err != nil {
		return types.Address{}, fmt.Errorf("claims.spender: %w", err)
	}
	return addr, nil
}
