package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/yndnr/nonceguard-go/internal/infra/tlsroots"
	"github.com/yndnr/nonceguard-go/internal/server/config"
)

// Server represents the HTTP server.
type Server struct {
	httpServer *http.Server
	certFile   string
	keyFile    string
	logger     *slog.Logger
}

// New creates a new HTTP server. TLS is used when cfg names a certificate.
func New(cfg *config.HTTPConfig, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		},
		certFile: cfg.TLSCertFile,
		keyFile:  cfg.TLSKeyFile,
		logger:   logger,
	}
}

// TLS reports whether the server serves HTTPS.
func (s *Server) TLS() bool {
	return s.certFile != ""
}

// ListenAndServe listens on the configured address and serves until
// Shutdown. It returns nil after a graceful shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown. It returns nil after a graceful
// shutdown. With TLS, the key pair is reloaded whenever its files change.
func (s *Server) Serve(ln net.Listener) error {
	var err error
	if s.TLS() {
		certs, werr := tlsroots.NewCertWatcher(s.certFile, s.keyFile, tlsroots.WithLogger(s.logger))
		if werr != nil {
			ln.Close()
			return werr
		}
		defer certs.Stop()

		s.httpServer.TLSConfig = certs.TLSConfig()
		s.logger.Info("http server listening", "addr", ln.Addr().String(), "tls", true)
		err = s.httpServer.ServeTLS(ln, "", "")
	} else {
		s.logger.Info("http server listening", "addr", ln.Addr().String(), "tls", false)
		err = s.httpServer.Serve(ln)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
