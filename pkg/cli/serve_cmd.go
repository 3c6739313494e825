package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"icescan/internal/api"
	"icescan/internal/config"
)

func newServeCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve snapshot and file queries over HTTP",
		Long: `Serve snapshot and file queries over HTTP.

Only tables under ICESCAN_API_ALLOWED_ROOTS are served. Listening on a
non-loopback address requires ICESCAN_API_KEYS or ICESCAN_API_JWT_SECRET.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr := rt.cfg.ListenAddr
			if v, _ := cmd.Flags().GetString("listen"); v != "" {
				addr = v
			}
			if err := checkServeExposure(rt.cfg, addr); err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer cancel()

			hcfg := api.HandlerConfig{
				Scan:         rt.scan,
				StartTime:    time.Now(),
				Logger:       rt.logger,
				Context:      ctx,
				AllowedRoots: rt.cfg.APIAllowedRoots,
			}
			if rt.cfg.HasAPIAuth() {
				auth := &api.AuthConfig{APIKeys: rt.cfg.APIKeys}
				if rt.cfg.APIJWTSecret != nil {
					auth.JWTSecret = []byte(*rt.cfg.APIJWTSecret)
				}
				hcfg.Auth = auth
			} else {
				rt.logger.Warn("HTTP API has no authentication; serving on loopback only", "addr", addr)
			}
			if rt.cfg.APIRequestsPerSecond > 0 {
				hcfg.RateLimit = &api.RateLimitConfig{
					RequestsPerSecond: rt.cfg.APIRequestsPerSecond,
					Burst:             rt.cfg.APIBurst,
				}
			}
			srv := &http.Server{
				Addr:        addr,
				Handler:     api.NewHandler(hcfg),
				ReadTimeout: 15 * time.Second,
				IdleTimeout: 120 * time.Second,
			}

			go func() {
				<-ctx.Done()
				rt.logger.Info("shutting down")
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer shutdownCancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			rt.logger.Info("HTTP server listening", "addr", addr, "allowed_roots", rt.cfg.APIAllowedRoots)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().String("listen", "", "Listen address (overrides ICESCAN_LISTEN_ADDR)")
	return cmd
}

// checkServeExposure refuses configurations that would serve nothing or
// expose an unauthenticated API beyond the local host.
func checkServeExposure(cfg *config.Config, addr string) error {
	if len(cfg.APIAllowedRoots) == 0 {
		return errors.New("no table locations to serve: set ICESCAN_API_ALLOWED_ROOTS or api-allowed-roots")
	}
	if !cfg.HasAPIAuth() && !isLoopbackAddr(addr) {
		return fmt.Errorf("refusing to serve without authentication on %s: set ICESCAN_API_KEYS or ICESCAN_API_JWT_SECRET, or listen on a loopback address", addr)
	}
	return nil
}

func isLoopbackAddr(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
