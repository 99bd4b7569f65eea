package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ChartSignal/pkg/http/middleware"
	applogger "ChartSignal/pkg/logger"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ServerOption func(*serverOptions)

type serverOptions struct {
	host            string
	port            int
	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration
	bodyLimit       string
	corsOrigins     []string
	metricsPath     string
	slow            time.Duration
}

func WithHost(host string) ServerOption { return func(o *serverOptions) { o.host = host } }
func WithPort(port int) ServerOption    { return func(o *serverOptions) { o.port = port } }

func WithTimeouts(read, write, shutdown time.Duration) ServerOption {
	return func(o *serverOptions) {
		o.readTimeout, o.writeTimeout, o.shutdownTimeout = read, write, shutdown
	}
}

// WithBodyLimit caps request bodies, e.g. "12M". Empty disables the cap.
func WithBodyLimit(limit string) ServerOption {
	return func(o *serverOptions) { o.bodyLimit = limit }
}

// WithCORS sets the allowed origins. No origins disables CORS.
func WithCORS(origins ...string) ServerOption {
	return func(o *serverOptions) { o.corsOrigins = origins }
}

// WithMetricsPath mounts the Prometheus handler. Empty disables it.
func WithMetricsPath(path string) ServerOption {
	return func(o *serverOptions) { o.metricsPath = path }
}

// WithSlowThreshold sets the latency above which requests log at warn.
func WithSlowThreshold(d time.Duration) ServerOption {
	return func(o *serverOptions) { o.slow = d }
}

// Server is the echo instance with the shared middleware chain mounted.
type Server struct {
	e    *echo.Echo
	opts serverOptions
	log  *applogger.Logger
}

// NewServer builds the middleware chain, then lets each handler register
// its routes. Nil handlers are skipped.
func NewServer(l *applogger.Logger, handlers []Handler, opts ...ServerOption) *Server {
	o := serverOptions{
		host:            "0.0.0.0",
		port:            8080,
		readTimeout:     30 * time.Second,
		writeTimeout:    30 * time.Second,
		shutdownTimeout: 10 * time.Second,
		bodyLimit:       "12M",
		corsOrigins:     []string{"*"},
		metricsPath:     "/metrics",
		slow:            2 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if l == nil {
		l = applogger.Nop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = o.readTimeout
	e.Server.WriteTimeout = o.writeTimeout
	e.HTTPErrorHandler = envelopeErrors

	e.Use(echomw.RequestID())
	e.Use(middleware.Observe(l, o.slow))
	e.Use(echomw.RecoverWithConfig(echomw.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			l.Error("panic recovered",
				applogger.Error(err),
				applogger.String("route", c.Path()),
				applogger.String("stack", string(stack)),
			)
			return err
		},
	}))
	if o.bodyLimit != "" {
		e.Use(echomw.BodyLimit(o.bodyLimit))
	}
	if len(o.corsOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins: o.corsOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderXRequestID},
			MaxAge:       600,
		}))
	}

	for _, h := range handlers {
		if h != nil {
			h.RegisterRoutes(e)
		}
	}
	if o.metricsPath != "" {
		e.GET(o.metricsPath, echo.WrapHandler(promhttp.Handler()))
	}
	return &Server{e: e, opts: o, log: l}
}

// envelopeErrors renders every error that reaches echo, including router
// 404/405 and middleware rejections, in the JSON envelope.
func envelopeErrors(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) && !errors.As(err, new(*AppError)) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		}
		err = NewAppError(statusCode(he.Code), "", msg, he.Code).WithError(err)
	}
	_ = AppErrorResponse(c, err)
}

// statusCode turns 413 into ERR_REQUEST_ENTITY_TOO_LARGE and so on.
func statusCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "ERR_HTTP_" + strconv.Itoa(status)
	}
	return "ERR_" + strings.ToUpper(strings.NewReplacer(" ", "_", "-", "_", "'", "").Replace(text))
}

// Start listens in the background. Listen errors are logged, not returned.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.opts.host, strconv.Itoa(s.opts.port))
	go func() {
		s.log.Info("http server listening", applogger.String("addr", addr))
		if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server error", applogger.Error(err))
		}
	}()
	return nil
}

// Stop drains connections, bounded by the shutdown timeout.
func (s *Server) Stop(ctx context.Context) error {
	if s.opts.shutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.shutdownTimeout)
		defer cancel()
	}
	if err := s.e.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.log.Info("http server stopped")
	return nil
}

func (s *Server) Echo() *echo.Echo { return s.e }
