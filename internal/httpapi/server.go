// v0
// internal/httpapi/server.go
package httpapi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"nrgchamp/buildingrl/internal/metrics"
)

type Server struct {
	HTTP *http.Server
	Log  *slog.Logger
}

// Options carries the HTTP timeouts.
type Options struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewRouter registers every route on a gorilla router. Each route is
// wrapped with the request metrics under its template.
func NewRouter(h *Handlers, m *metrics.Metrics) *mux.Router {
	r := mux.NewRouter()
	route := func(path string, fn http.HandlerFunc, methods ...string) {
		r.Handle(path, m.WrapHandler(path, fn)).Methods(methods...)
	}

	route("/health", h.Health, http.MethodGet)
	route("/health/live", h.Live, http.MethodGet)
	route("/health/ready", h.Ready, http.MethodGet)
	route("/building", h.Building, http.MethodGet)
	route("/status", h.Status, http.MethodGet)
	route("/reset", h.Reset, http.MethodPost)
	route("/step", h.Step, http.MethodPost)
	route("/floors/{index:[0-9]+}/{op:.+}", h.FloorOp, http.MethodPost)
	route("/outside-temperature", h.OutsideTemperature, http.MethodPut)
	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)

	return r
}

// NewServer builds the HTTP server around the router: panics are recovered,
// every request is access-logged through slog, and display clients on other
// origins may read and drive the session.
func NewServer(addr string, opts Options, log *slog.Logger, h *Handlers, m *metrics.Metrics) *Server {
	log = log.With(slog.String("component", "http"))
	var handler http.Handler = NewRouter(h, m)
	handler = handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(handler)
	handler = handlers.CustomLoggingHandler(io.Discard, handler, accessLog(log))
	handler = handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{log: log}),
		handlers.PrintRecoveryStack(false),
	)(handler)

	hs := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: opts.ReadTimeout,
		ReadTimeout:       opts.ReadTimeout,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
	return &Server{HTTP: hs, Log: log}
}

func (s *Server) Start() error {
	s.Log.Info("http_server_starting", slog.String("addr", s.HTTP.Addr))
	return s.HTTP.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.Log.Info("http_server_stopping")
	return s.HTTP.Shutdown(ctx)
}

func accessLog(log *slog.Logger) handlers.LogFormatter {
	return func(_ io.Writer, p handlers.LogFormatterParams) {
		log.Info("http_request",
			slog.String("method", p.Request.Method),
			slog.String("path", p.URL.Path),
			slog.Int("status", p.StatusCode),
			slog.Int("size", p.Size),
			slog.Duration("elapsed", time.Since(p.TimeStamp)),
		)
	}
}

type recoveryLogger struct {
	log *slog.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.log.Error("http_panic", slog.String("err", fmt.Sprint(v...)))
}
