// Package http exposes a listener over HTTP: echo and store requests, the
// accepted SOP classes and lookups in the instance index.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/marmos91/dittodicom/internal/logger"
	"github.com/marmos91/dittodicom/pkg/dicom"
	"github.com/marmos91/dittodicom/pkg/listener"
	"github.com/marmos91/dittodicom/pkg/store/index"
)

// Request headers carrying the association AE titles.
const (
	HeaderCallingAETitle = "X-Calling-AE-Title"
	HeaderCalledAETitle  = "X-Called-AE-Title"
)

// Config tunes the HTTP server.
type Config struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// BodyLimit caps the size of a store request, in echo notation ("512M").
	BodyLimit string
}

func (c *Config) applyDefaults() {
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 5 * time.Minute
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 5 * time.Minute
	}
	if c.BodyLimit == "" {
		c.BodyLimit = "512M"
	}
}

// Adapter serves one listener on its configured port.
type Adapter struct {
	listener     *listener.Listener
	echo         *echo.Echo
	shutdownOnce sync.Once
}

// New builds the HTTP adapter for l.
func New(l *listener.Listener, cfg Config) *Adapter {
	cfg.applyDefaults()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout
	e.Server.IdleTimeout = cfg.IdleTimeout

	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(requestLogger(l.Name()))

	a := &Adapter{listener: l, echo: e}
	a.registerRoutes(e)
	return a
}

func (a *Adapter) registerRoutes(e *echo.Echo) {
	e.POST("/echo", a.handleEcho)
	e.POST("/store", a.handleStore)
	e.GET("/classes", a.handleClasses)
	e.GET("/instances/:uid", a.handleInstance)
	e.GET("/studies/:uid", a.handleStudy)
}

func requestLogger(name string) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogMethod:   true,
		LogURI:      true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Debug("[%s] %d %s %s from %s in %v", name, v.Status, v.Method, v.URI, v.RemoteIP, v.Latency)
			return nil
		},
	})
}

// Handler returns the HTTP handler, mostly useful for tests.
func (a *Adapter) Handler() http.Handler { return a.echo }

func (a *Adapter) Protocol() string { return "http" }

func (a *Adapter) Name() string { return a.listener.Name() }

func (a *Adapter) Port() int { return a.listener.Config().Port }

// Serve listens on the listener's port until ctx is cancelled.
func (a *Adapter) Serve(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("Listener %s accepting HTTP requests on port %d", a.Name(), a.Port())
		if err := a.echo.Start(fmt.Sprintf(":%d", a.Port())); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := a.Stop(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errChan:
		return fmt.Errorf("listener %s: %w", a.Name(), err)
	}
}

// Stop shuts the HTTP server down, waiting for in-flight requests.
func (a *Adapter) Stop(ctx context.Context) error {
	var err error
	a.shutdownOnce.Do(func() {
		if serr := a.echo.Shutdown(ctx); serr != nil {
			err = fmt.Errorf("listener %s shutdown: %w", a.Name(), serr)
		}
	})
	return err
}

// StatusResponse is the JSON body of echo and store responses.
type StatusResponse struct {
	Status         string `json:"status"`
	StatusText     string `json:"status_text"`
	SOPInstanceUID string `json:"sop_instance_uid,omitempty"`
	Skipped        bool   `json:"skipped"`
	Path           string `json:"path,omitempty"`
}

func toStatusResponse(r listener.Response) StatusResponse {
	return StatusResponse{
		Status:         r.Status.Hex(),
		StatusText:     r.StatusText,
		SOPInstanceUID: r.SOPInstanceUID,
		Skipped:        r.Skipped,
		Path:           r.Path,
	}
}

// checkCalledAE rejects requests addressed to another AE title.
func (a *Adapter) checkCalledAE(c echo.Context) error {
	called := strings.TrimSpace(c.Request().Header.Get(HeaderCalledAETitle))
	if called != "" && called != a.listener.Name() {
		return echo.NewHTTPError(http.StatusForbidden,
			fmt.Sprintf("called AE title %q does not match %q", called, a.listener.Name()))
	}
	return nil
}

func (a *Adapter) handleEcho(c echo.Context) error {
	if err := a.checkCalledAE(c); err != nil {
		return err
	}
	calling := c.Request().Header.Get(HeaderCallingAETitle)
	resp := a.listener.HandleEcho(c.Request().Context(), calling)
	return c.JSON(http.StatusOK, toStatusResponse(resp))
}

func (a *Adapter) handleStore(c echo.Context) error {
	if err := a.checkCalledAE(c); err != nil {
		return err
	}

	req := c.Request()
	ds, err := dicom.DecodeDataset(req.Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("decoding dataset: %v", err))
	}

	resp := a.listener.HandleStore(req.Context(), listener.Request{
		CallingAE: strings.TrimSpace(req.Header.Get(HeaderCallingAETitle)),
		CalledAE:  a.listener.Name(),
		Object:    ds,
	})
	return c.JSON(http.StatusOK, toStatusResponse(resp))
}

// ClassResponse describes one accepted SOP class.
type ClassResponse struct {
	UID              string   `json:"uid"`
	Name             string   `json:"name"`
	TransferSyntaxes []string `json:"transfer_syntaxes"`
}

func (a *Adapter) handleClasses(c echo.Context) error {
	classes := a.listener.AcceptedClasses()
	out := make([]ClassResponse, 0, len(classes))
	for _, sc := range classes {
		syntaxes := a.listener.AcceptedTransferSyntaxes(sc)
		uids := make([]string, 0, len(syntaxes))
		for _, ts := range syntaxes {
			uids = append(uids, ts.UID)
		}
		out = append(out, ClassResponse{UID: sc.UID, Name: sc.Name, TransferSyntaxes: uids})
	}
	return c.JSON(http.StatusOK, out)
}

func (a *Adapter) handleInstance(c echo.Context) error {
	idx := a.listener.Index()
	if idx == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "instance index disabled")
	}

	rec, err := idx.Get(c.Request().Context(), c.Param("uid"))
	if errors.Is(err, index.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		logger.Error("Index lookup for %s failed: %v", c.Param("uid"), err)
		return echo.NewHTTPError(http.StatusInternalServerError, "index lookup failed")
	}
	return c.JSON(http.StatusOK, rec)
}

func (a *Adapter) handleStudy(c echo.Context) error {
	idx := a.listener.Index()
	if idx == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "instance index disabled")
	}

	recs, err := idx.Study(c.Request().Context(), c.Param("uid"))
	if err != nil {
		logger.Error("Index lookup for study %s failed: %v", c.Param("uid"), err)
		return echo.NewHTTPError(http.StatusInternalServerError, "index lookup failed")
	}
	if len(recs) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "study not found")
	}
	return c.JSON(http.StatusOK, recs)
}
