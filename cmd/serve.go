package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kibrowser/ki-browser/internal/api"
	"github.com/kibrowser/ki-browser/internal/config"
	"github.com/kibrowser/ki-browser/internal/engine"
	"github.com/kibrowser/ki-browser/internal/events"
	"github.com/kibrowser/ki-browser/internal/ipc"
	"github.com/kibrowser/ki-browser/internal/observability"
	"github.com/kibrowser/ki-browser/internal/stealth"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the browser and its control API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "control API port")
	serveCmd.Flags().Bool("headless", true, "run the browser without a visible window")
	serveCmd.Flags().Bool("stealth", false, "enable fingerprint spoofing")
	serveCmd.Flags().Int("width", 0, "browser window width")
	serveCmd.Flags().Int("height", 0, "browser window height")
	serveCmd.Flags().String("user-agent", "", "user agent override")
	serveCmd.Flags().String("proxy", "", "proxy URL (http, https or socks5)")
	serveCmd.Flags().String("profile-path", "", "browser profile directory")
	serveCmd.Flags().Int("max-tabs", 0, "maximum concurrent tabs")
	serveCmd.Flags().Int("timeout", 0, "default command timeout in milliseconds")
	serveCmd.Flags().Bool("mock", false, "use the in-process mock engine instead of Chromium")

	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("browser.headless", serveCmd.Flags().Lookup("headless"))
	_ = viper.BindPFlag("stealth.enabled", serveCmd.Flags().Lookup("stealth"))
	_ = viper.BindPFlag("browser.window_width", serveCmd.Flags().Lookup("width"))
	_ = viper.BindPFlag("browser.window_height", serveCmd.Flags().Lookup("height"))
	_ = viper.BindPFlag("browser.user_agent", serveCmd.Flags().Lookup("user-agent"))
	_ = viper.BindPFlag("browser.proxy", serveCmd.Flags().Lookup("proxy"))
	_ = viper.BindPFlag("browser.profile_path", serveCmd.Flags().Lookup("profile-path"))
	_ = viper.BindPFlag("browser.max_tabs", serveCmd.Flags().Lookup("max-tabs"))
	_ = viper.BindPFlag("browser.default_timeout_ms", serveCmd.Flags().Lookup("timeout"))
	_ = viper.BindPFlag("engine.mock", serveCmd.Flags().Lookup("mock"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	cfg := config.Get()
	logger := observability.GetLogger()
	logger.Info("starting ki-browser", zap.String("version", Version))

	var bundle *stealth.Bundle
	if cfg.Stealth.Enabled {
		b := stealth.ConsistentBundle(cfg.Stealth.Seed)
		if cfg.Stealth.CanvasNoise > 0 {
			b.WebGL = b.WebGL.WithCanvasNoise(true, cfg.Stealth.CanvasNoise)
		}
		if err := b.Validate(); err != nil {
			return err
		}
		bundle = &b
		logger.Info("stealth enabled",
			zap.String("profile", b.Fingerprint.Profile.String()),
			zap.String("platform", b.Fingerprint.Platform))
	}

	bus := events.NewBus(Version, logger)

	var eng engine.Engine
	if viper.GetBool("engine.mock") {
		eng = engine.NewMock(cfg, bundle, bus, logger)
	} else {
		eng = engine.NewChrome(cfg, bundle, bus, logger)
	}
	if err := eng.Start(ctx); err != nil {
		return err
	}

	ch := ipc.NewChannel(logger)
	if cfg.Browser.DefaultTimeoutMs > 0 {
		ch.SetTimeout(time.Duration(cfg.Browser.DefaultTimeoutMs) * time.Millisecond)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		engine.NewProcessor(ch, eng, logger).Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		bus.RunPinger(groupCtx, events.PingInterval)
		return nil
	})
	if cfg.Server.Enabled {
		srv := api.NewServer(cfg.Server, ch, eng.Registry(), bus, Version, logger)
		group.Go(func() error {
			return srv.Run(groupCtx)
		})
	} else {
		logger.Info("control api disabled by configuration")
	}

	err := group.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if serr := eng.Shutdown(shutdownCtx); serr != nil {
		logger.Warn("engine shutdown failed", zap.Error(serr))
	}
	ch.Close()
	logger.Info("ki-browser stopped")
	return err
}
