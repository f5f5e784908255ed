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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/vitwit/usdcpay"
	"github.com/vitwit/usdcpay/config"
	"github.com/vitwit/usdcpay/logger"
	"github.com/vitwit/usdcpay/metrics"
	"github.com/vitwit/usdcpay/types"
)

var Version = "dev"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "usdcpay",
		Short:         "Pay invoices in USDC and track the transfer to confirmation",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (yaml)")

	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(invoiceCmd())
	rootCmd.AddCommand(payCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type session struct {
	cfg    *types.Config
	client *usdcpay.Client
	log    logger.Logger
	server *http.Server
}

// openSession loads the config and builds a client. extra, when set, adds
// options that depend on the loaded config.
func openSession(ctx context.Context, extra func(*types.Config) []usdcpay.Option) (*session, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, log: logger.NewZapFileLogger(cfg.LogLevel, cfg.LogFile)}
	opts := []usdcpay.Option{usdcpay.WithLogger(s.log)}
	if extra != nil {
		opts = append(opts, extra(cfg)...)
	}

	if cfg.EnableMetrics {
		reg := prometheus.NewRegistry()
		opts = append(opts, usdcpay.WithMetrics(metrics.NewPrometheusRecorder(reg)))
		s.server = serveMetrics(cfg.MetricsAddr, reg, s.log)
	}

	client, err := usdcpay.NewFromConfig(ctx, cfg, opts...)
	if err != nil {
		s.close()
		return nil, err
	}
	s.client = client
	return s, nil
}

func (s *session) close() {
	if s.client != nil {
		_ = s.client.Close()
	}
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctx)
	}
}

func serveMetrics(addr string, reg *prometheus.Registry, log logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", map[string]any{"addr": addr, "error": err.Error()})
		}
	}()
	log.Info("metrics server listening", map[string]any{"addr": addr})
	return srv
}
