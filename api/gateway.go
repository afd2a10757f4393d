// Package api exposes the REST surface: media extraction, download
// relaying, and a health probe.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/shaunleeweirong/video-downloader/errs"
	"github.com/shaunleeweirong/video-downloader/extractor"
	"github.com/shaunleeweirong/video-downloader/internal/logger"
	"github.com/shaunleeweirong/video-downloader/proxy"
	"github.com/shaunleeweirong/video-downloader/ratelimit"
)

var log = logger.Get(logger.ComponentAPI)

// Config holds the gateway's runtime parameters.
type Config struct {
	Addr string
	// ExtractTimeout bounds one extraction round trip end to end.
	ExtractTimeout time.Duration
}

// Gateway wires the registry and the proxy behind an echo server.
type Gateway struct {
	ec       *echo.Echo
	cfg      Config
	registry *extractor.Registry
	proxy    *proxy.Service
}

// New assembles the gateway. The rate limiter guards the extraction and
// download routes; the health probe stays open for orchestrators.
func New(cfg Config, registry *extractor.Registry, proxySvc *proxy.Service, limiter *ratelimit.Limiter) *Gateway {
	if cfg.ExtractTimeout <= 0 {
		cfg.ExtractTimeout = 30 * time.Second
	}

	ec := echo.New()
	ec.HideBanner = true
	ec.HidePort = true
	ec.HTTPErrorHandler = errorHandler

	gateway := &Gateway{ec: ec, cfg: cfg, registry: registry, proxy: proxySvc}

	ec.Use(middleware.Logger())
	ec.Use(middleware.Recover())

	limited := ec.Group("/api", limiter.Middleware())
	limited.GET("/medias", gateway.handleMedias)
	limited.GET("/downloads", gateway.handleDownloads)

	ec.GET("/api/health", gateway.handleHealth)

	return gateway
}

func (g *Gateway) handleMedias(c echo.Context) error {
	rawURL := c.QueryParam("url")
	if rawURL == "" {
		return errs.InvalidURL("Missing url parameter")
	}

	ex, err := g.registry.Resolve(rawURL)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), g.cfg.ExtractTimeout)
	defer cancel()

	video, err := ex.Extract(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, video)
}

func (g *Gateway) handleDownloads(c echo.Context) error {
	req := proxy.Request{
		MediaURL: c.QueryParam("url"),
		Ext:      c.QueryParam("ext"),
		Title:    c.QueryParam("title"),
	}
	return g.proxy.Stream(c.Request().Context(), c.Response(), req)
}

func (g *Gateway) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// errorHandler serializes every failure to the {error: message} contract.
// Once a response is committed, mid-stream for a download, nothing more
// can be sent and the error is only logged.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		log.Debug("error after response committed on %s: %v", c.Request().RequestURI, err)
		return
	}

	if reqErr, ok := errs.As(err); ok {
		if jsonErr := c.JSON(reqErr.StatusCode, reqErr); jsonErr != nil {
			log.Error("failed to write error response: %v", jsonErr)
		}
		return
	}

	if httpErr, ok := err.(*echo.HTTPError); ok {
		msg := http.StatusText(httpErr.Code)
		if s, isString := httpErr.Message.(string); isString {
			msg = s
		}
		if jsonErr := c.JSON(httpErr.Code, map[string]string{"error": msg}); jsonErr != nil {
			log.Error("failed to write error response: %v", jsonErr)
		}
		return
	}

	// Unrecognised errors stay server-side; the client gets a generic 500.
	log.Error("unhandled error on %s %s: %v", c.Request().Method, c.Request().RequestURI, err)
	if jsonErr := c.JSON(http.StatusInternalServerError, errs.Unexpected("Internal server error")); jsonErr != nil {
		log.Error("failed to write error response: %v", jsonErr)
	}
}

// Run serves until ctx is cancelled, then closes the listener.
func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancelCause(ctx)
	wg := &sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := g.ec.Start(g.cfg.Addr); err != nil && err != http.ErrServerClosed {
			cancel(err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := g.ec.Shutdown(shutdownCtx); err != nil {
			g.ec.Close()
		}
	}()

	wg.Wait()

	if cause := context.Cause(ctx); cause != ctx.Err() {
		return cause
	}
	return nil
}
