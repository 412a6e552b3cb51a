package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/goodaegwang/cirrus/internal/api"
	"github.com/goodaegwang/cirrus/internal/audit"
	"github.com/goodaegwang/cirrus/internal/config"
	"github.com/goodaegwang/cirrus/internal/core"
	"github.com/goodaegwang/cirrus/internal/store"
	"github.com/goodaegwang/cirrus/internal/store/pg"
	"github.com/goodaegwang/cirrus/internal/tasks"
	"github.com/goodaegwang/cirrus/internal/token"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Cirrus server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.Server.Addr
		}

		codec := token.New(cfg.Token.SignSecret, cfg.Token.VerifySecret, nil)

		log.Info().Str("type", cfg.Store.Type).Msg("Initializing store...")
		credentials, telemetry, userStats, closeStore, err := buildStores(cmd.Context(), cfg.Store)
		if err != nil {
			return fmt.Errorf("initializing store: %w", err)
		}
		defer func() {
			if err := closeStore(); err != nil {
				log.Warn().Err(err).Msg("closing store")
			}
		}()

		if cfg.Store.CacheTTL > 0 {
			log.Info().Dur("ttl", cfg.Store.CacheTTL).Msg("Enabling client credential cache...")
			credentials = store.NewCachedCredentialStore(credentials, cfg.Store.CacheTTL)
		}

		auditor, err := buildAuditor(cfg.Audit)
		if err != nil {
			return fmt.Errorf("initializing auditor: %w", err)
		}
		defer func() {
			_ = auditor.Close()
		}()

		taskManager := tasks.NewManager()
		taskManager.Register(tasks.TokenCleanupTaskName, cfg.Tasks.TokenCleanupInterval,
			tasks.NewTokenCleanup(credentials))

		srv := api.NewServer(credentials, telemetry, userStats, codec, taskManager, auditor)

		server := &http.Server{
			Addr:         addr,
			Handler:      srv.Routes(),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}

		go func() {
			log.Info().Msgf("Starting server on %s...", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("Server crashed")
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info().Msg("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		log.Info().Msg("Server exited")
		return nil
	},
}

// buildStores selects the backend and returns the three store views plus
// a close func. The memory backend is seeded from the config.
func buildStores(ctx context.Context, cfg config.StoreConfig) (
	core.CredentialStore, core.TelemetryStore, core.UserStatsStore, func() error, error,
) {
	if cfg.Type == "postgres" {
		pool, err := cfg.PoolParams()
		if err != nil {
			return nil, nil, nil, nil, err
		}
		pgStore, err := pg.Open(cfg.DSN, pool)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("opening postgres store: %w", err)
		}
		if err := pgStore.Ping(ctx); err != nil {
			_ = pgStore.Close()
			return nil, nil, nil, nil, fmt.Errorf("pinging postgres store: %w", err)
		}
		return pgStore, pgStore, pgStore, pgStore.Close, nil
	}

	mem := store.NewMemory()
	seedMemory(mem, cfg.Seed)
	return mem, mem, mem, func() error { return nil }, nil
}

func seedMemory(mem *store.Memory, seed config.SeedConfig) {
	for _, sc := range seed.Clients {
		mem.AddClient(sc.Client())
	}
	for _, u := range seed.Users {
		mem.AddUser(core.User{
			ID:        u.ID,
			Name:      u.Name,
			Scope:     u.Scope,
			Status:    u.Status,
			ServiceID: u.ServiceID,
		}, u.Password)
	}
	for _, k := range seed.AppKeys {
		mem.AddAppKey(k.AppKey, core.AppKeyCredential{
			UserID:    k.UserID,
			ServiceID: k.ServiceID,
			Password:  k.Password,
		})
	}
	for _, s := range seed.Services {
		mem.AddService(s)
	}
	for _, d := range seed.Devices {
		mem.AddDevice(d.ServiceID, d.DeviceID)
	}
}

func buildAuditor(cfg config.AuditConfig) (core.Auditor, error) {
	if !cfg.Enabled {
		return audit.NewNoopAuditor(), nil
	}
	switch cfg.Type {
	case "file":
		return audit.NewFileAuditor(cfg.Path)
	case "", "memory":
		return audit.NewInMemoryAuditor(), nil
	default:
		return nil, fmt.Errorf("unknown auditor type %q", cfg.Type)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f.bindConfigFlag(serveCmd.Flags())
	serveCmd.Flags().String("addr", "", "Address to listen on (overrides the config)")
}
