package dashboard

import (
	"compress/gzip"
	"context"
	"crypto/tls"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"github.com/vadiminshakov/rotor/internal"
	"github.com/vadiminshakov/rotor/internal/domain"
	"github.com/vadiminshakov/rotor/internal/metrics"
)

const (
	ledgerPollInterval = 3 * time.Second
	heartbeatInterval  = 20 * time.Second
	stateTimeout       = 15 * time.Second
	shutdownTimeout    = 5 * time.Second
)

//go:embed static
var staticFiles embed.FS

type stateProvider interface {
	State(ctx context.Context) internal.State
	Transactions() []domain.Entry
	TransactionsAfter(offset int) []domain.Entry
	SubscribeTransactions() <-chan domain.Entry
	UnsubscribeTransactions(ch <-chan domain.Entry)
}

// Server exposes the read-only status API, a transaction SSE stream and the HTML UI.
type Server struct {
	Addr   string
	Bot    stateProvider
	logger *zap.Logger
}

// NewServer creates a new web server instance.
func NewServer(addr string, bot stateProvider, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{Addr: addr, Bot: bot, logger: logger}
}

// Handler returns the routes served by the status server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /", s.staticHandler())
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /dashboard", s.handleState)
	mux.HandleFunc("GET /api/transactions", s.handleTransactions)
	mux.HandleFunc("GET /transactions/stream", s.handleTransactionStream)
	mux.Handle("GET /metrics", metrics.Handler())
	return mux
}

// Start serves plain HTTP until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	srv := newHTTPServer(s.Addr, s.Handler())
	go s.shutdownOnDone(ctx, "status", srv)

	s.logger.Info("status server listening", zap.String("addr", s.Addr))
	return ignoreClosed(srv.ListenAndServe())
}

// StartWithAutoTLS serves HTTPS with ACME certificates for domains. Port 80
// answers the HTTP-01 challenges.
func (s *Server) StartWithAutoTLS(ctx context.Context, domains []string, cacheDir string) error {
	if len(domains) == 0 {
		return errors.New("no domains provided for automatic TLS")
	}
	if cacheDir == "" {
		cacheDir = "cert-cache"
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cacheDir),
	}

	challenge := newHTTPServer(":80", manager.HTTPHandler(nil))
	secure := newHTTPServer(s.Addr, s.Handler())
	secure.TLSConfig = manager.TLSConfig()
	secure.TLSConfig.MinVersion = tls.VersionTLS12

	go s.shutdownOnDone(ctx, "acme challenge", challenge)
	go s.shutdownOnDone(ctx, "status tls", secure)
	go func() {
		if err := ignoreClosed(challenge.ListenAndServe()); err != nil {
			s.logger.Error("acme challenge server", zap.Error(err))
		}
	}()

	s.logger.Info("status server listening with TLS", zap.String("addr", s.Addr), zap.Strings("domains", domains))
	return ignoreClosed(secure.ListenAndServeTLS("", ""))
}

func newHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func (s *Server) shutdownOnDone(ctx context.Context, name string, srv *http.Server) {
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := ignoreClosed(srv.Shutdown(shutdownCtx)); err != nil {
		s.logger.Error("server shutdown", zap.String("server", name), zap.Error(err))
	}
}

func ignoreClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), stateTimeout)
	defer cancel()

	s.writeJSON(w, s.Bot.State(ctx))
}

func (s *Server) handleTransactions(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.Bot.Transactions())
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("write response", zap.Error(err))
	}
}

// handleTransactionStream sends ledger entries as SSE events. The event id is the
// 1-based ledger position, so Last-Event-ID resumes right after the last seen entry.
func (s *Server) handleTransactionStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(ledgerPollInterval)
	defer pollTicker.Stop()

	appended := s.Bot.SubscribeTransactions()
	defer s.Bot.UnsubscribeTransactions(appended)

	seen := s.parseLastEventID(r.Header.Get("Last-Event-ID"), r.URL.Query().Get("last_event_id"))
	// an id past the end comes from an earlier ledger (e.g. before a restart), replay from the start
	if total := len(s.Bot.Transactions()); seen > total {
		s.logger.Debug("last event id beyond ledger, replaying", zap.Int("id", seen), zap.Int("ledger_len", total))
		seen = 0
	}
	sendEntries := func() error {
		for _, entry := range s.Bot.TransactionsAfter(seen) {
			payload, err := json.Marshal(entry)
			if err != nil {
				return err
			}
			seen++
			fmt.Fprintf(w, "id: %d\n", seen)
			fmt.Fprintf(w, "event: transaction\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
		}
		flusher.Flush()
		return nil
	}

	if err := sendEntries(); err != nil {
		s.logger.Error("transaction stream initial load", zap.Error(err))
		return
	}

	if seen == 0 {
		fmt.Fprintf(w, "event: no_data\n")
		fmt.Fprintf(w, "data: {}\n\n")
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case _, ok := <-appended:
			if !ok {
				return
			}
			if err := sendEntries(); err != nil {
				s.logger.Warn("transaction stream push", zap.Error(err))
			}
		case <-pollTicker.C:
			// catches up on notifications dropped for a slow reader
			if err := sendEntries(); err != nil {
				s.logger.Warn("transaction stream poll", zap.Error(err))
			}
		}
	}
}

func (s *Server) staticHandler() http.Handler {
	root, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	fileServer := http.FileServer(http.FS(root))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assetPath := r.URL.Path
		if assetPath == "" || assetPath == "/" {
			assetPath = "/index.html"
		}

		if !shouldCompress(assetPath) || !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			fileServer.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Vary", "Accept-Encoding")

		gz := gzip.NewWriter(w)
		defer gz.Close()

		gzw := &gzipResponseWriter{ResponseWriter: w, writer: gz}
		fileServer.ServeHTTP(gzw, r)
	})
}

type gzipResponseWriter struct {
	http.ResponseWriter
	writer *gzip.Writer
}

func (w *gzipResponseWriter) WriteHeader(statusCode int) {
	w.Header().Del("Content-Length")
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	return w.writer.Write(b)
}

func shouldCompress(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case "", ".html", ".css", ".js", ".json", ".svg":
		return true
	default:
		return false
	}
}

// parseLastEventID prefers the Last-Event-ID header; the query parameter allows manual resumes.
func (s *Server) parseLastEventID(headerVal, queryVal string) int {
	idStr := strings.TrimSpace(headerVal)
	if idStr == "" {
		idStr = strings.TrimSpace(queryVal)
	}
	if idStr == "" {
		return 0
	}

	id, err := strconv.Atoi(idStr)
	if err != nil || id < 0 {
		s.logger.Warn("invalid last event id", zap.String("id", idStr))
		return 0
	}
	return id
}
