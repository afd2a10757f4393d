// Command server runs the video extraction and download service.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/shaunleeweirong/video-downloader/api"
	"github.com/shaunleeweirong/video-downloader/client"
	"github.com/shaunleeweirong/video-downloader/extractor"
	"github.com/shaunleeweirong/video-downloader/extractor/facebook"
	"github.com/shaunleeweirong/video-downloader/extractor/instagram"
	"github.com/shaunleeweirong/video-downloader/extractor/linkedin"
	"github.com/shaunleeweirong/video-downloader/extractor/tiktok"
	"github.com/shaunleeweirong/video-downloader/extractor/twitter"
	"github.com/shaunleeweirong/video-downloader/extractor/youtube"
	"github.com/shaunleeweirong/video-downloader/internal/config"
	"github.com/shaunleeweirong/video-downloader/internal/logger"
	"github.com/shaunleeweirong/video-downloader/proxy"
	"github.com/shaunleeweirong/video-downloader/ratelimit"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	log := logger.Get(logger.ComponentApp)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}

	logger.Default().SetLevel(logger.ParseLevel(cfg.Log.Level))
	logger.Default().SetFormat(logger.ParseFormat(cfg.Log.Format))

	if cfg.Extractor.TikTokResolverURL != "" {
		tiktok.SetResolverURL(cfg.Extractor.TikTokResolverURL)
	}

	httpClient := client.NewWith(client.Config{
		Timeout:  cfg.Extractor.FetchTimeout,
		ProxyURL: cfg.Extractor.ProxyURL,
	})

	// Registration order is resolution priority: the scrapers with the
	// narrowest URL patterns go first so a generic pattern never
	// shadows a specific one.
	registry := extractor.NewRegistry(httpClient,
		facebook.New,
		linkedin.New,
		twitter.New,
		youtube.New,
		tiktok.New,
		instagram.New,
	)

	limiter := ratelimit.New(ratelimit.Config{
		RPS:   cfg.RateLimit.RPS,
		Burst: cfg.RateLimit.Burst,
		TTL:   cfg.RateLimit.TTL,
	})
	defer limiter.Stop()

	gateway := api.New(api.Config{
		Addr:           cfg.Addr(),
		ExtractTimeout: cfg.Extractor.FetchTimeout,
	}, registry, proxy.New(cfg.Download.FirstByteTimeout), limiter)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("listening on %s", cfg.Addr())
	if err := gateway.Run(ctx); err != nil {
		log.Error("server stopped: %v", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
