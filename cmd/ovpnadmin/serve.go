package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/alecgard/ovpnadmin/internal/apiclient"
	"github.com/alecgard/ovpnadmin/internal/console"
	"github.com/alecgard/ovpnadmin/internal/crypto"
	"github.com/alecgard/ovpnadmin/internal/i18n"
	"github.com/alecgard/ovpnadmin/internal/locale"
	"github.com/alecgard/ovpnadmin/internal/metrics"
	"github.com/alecgard/ovpnadmin/internal/notify"
	"github.com/alecgard/ovpnadmin/internal/ratelimit"
	"github.com/alecgard/ovpnadmin/internal/storage"
)

// cleanupInterval paces removal of expired console state and idle
// login-throttle buckets.
const cleanupInterval = 10 * time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web console",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	closeLog := setupLogging(cfg.Log)
	defer closeLog()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return err
	}
	slog.Info("connected to database")

	m := metrics.New()
	m.RegisterDBPoolCollector(func() (total, idle, acquired int32) {
		s := pool.Stat()
		return s.TotalConns(), s.IdleConns(), s.AcquiredConns()
	})

	cipher, err := crypto.NewCipher(cfg.Storage.Secret, cipherPurpose)
	if err != nil {
		return err
	}
	if cipher == nil {
		slog.Warn("storage.secret not set: console sessions are stored unencrypted")
	}

	reg := i18n.DefaultRegistry()
	if err := reg.Preload(ctx, locale.Supported()...); err != nil {
		return err
	}

	sup, closeSup, err := newSuppressor(cfg)
	if err != nil {
		return err
	}
	defer closeSup()

	client, err := apiclient.New(cfg.Backend.BaseURL, nil,
		apiclient.WithTimeout(cfg.Backend.Timeout),
		apiclient.WithObserver(m),
		apiclient.WithLocale(locale.FromContext),
	)
	if err != nil {
		return err
	}

	kv := storage.NewPostgres(pool)
	limiter := ratelimit.New(cfg.LoginRateLimit.Attempts, cfg.LoginRateLimit.Window)

	c, err := console.New(console.Deps{
		KV:           kv,
		Client:       client,
		Registry:     reg,
		Notifier:     notify.New(nil, sup, cfg.Notify.Window),
		Cipher:       cipher,
		Metrics:      m,
		Limiter:      limiter,
		DB:           pool,
		SecureCookie: cfg.Cookie.Secure,
		TrustProxy:   cfg.Server.TrustProxy,
	})
	if err != nil {
		return err
	}

	go cleanup(ctx, kv, limiter)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      console.NewRouter(c),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", cfg.Addr(), "backend", cfg.Backend.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-sigCh:
		slog.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	cancel()
	return srv.Shutdown(shutdownCtx)
}

// cleanup periodically drops expired console state rows and idle throttle
// buckets until ctx is cancelled.
func cleanup(ctx context.Context, kv *storage.Postgres, limiter *ratelimit.Limiter) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := kv.CleanExpired(ctx)
			if err != nil {
				slog.Warn("cleaning expired console state", "error", err)
			} else if n > 0 {
				slog.Debug("cleaned expired console state", "rows", n)
			}
			if limiter != nil {
				limiter.Prune()
			}
		}
	}
}
