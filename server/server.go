package server

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"dealflow/config"
	"dealflow/logger"
)

// Server hosts the read-only HTTP surface over the collected artifacts.
type Server struct {
	cfg   *config.Config
	store *Store
	app   *fiber.App
	addr  string
	log   *logger.Log
}

// NewServer builds the Fiber application, wires middleware and registers
// every route. The store must already be constructed; loading it is the
// caller's responsibility.
func NewServer(cfg *config.Config, store *Store) *Server {
	s := &Server{
		cfg:   cfg,
		store: store,
		addr:  normalizeAddress(cfg.Server.Addr),
		log:   logger.GetLogger(),
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.Dealflow.Name,
		DisableStartupMessage: true,
		ErrorHandler:          jsonErrorHandler,
	})

	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(s.requestLogger())

	s.app = app
	s.registerRoutes()
	return s
}

// jsonErrorHandler keeps every error response in the {"error": message}
// shape, including errors raised by the router itself.
func jsonErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func (s *Server) requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		entry := s.log.WithComponent("server").WithFields(logger.Fields{
			"method": c.Method(),
			"path":   c.Path(),
			"status": c.Response().StatusCode(),
		})
		logger.LogPerformanceEntry(entry, "server", "http_request", time.Since(start), logger.Fields{
			"bytes_out": len(c.Response().Body()),
		})
		return err
	}
}

// Run starts the HTTP server and blocks until the context is cancelled or
// the listener exits with an error. Cancellation triggers a graceful
// shutdown bounded by the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	log := s.log.WithComponent("server").WithFields(logger.Fields{"addr": s.addr})
	log.Info("starting http server")

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.Listen(s.addr); err != nil {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		timeout := time.Duration(s.cfg.Server.ShutdownTimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		if err := s.app.ShutdownWithTimeout(timeout); err != nil {
			return err
		}
		<-errCh
		log.Info("http server stopped")
		return nil
	case err := <-errCh:
		if err == nil {
			return nil
		}
		return err
	}
}

// Address reports the normalized network address the server listens on.
func (s *Server) Address() string {
	return s.addr
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)

	if addr == "" {
		return "0.0.0.0:8080"
	}

	if strings.Contains(addr, "://") {
		if parsed, err := url.Parse(addr); err == nil {
			if host := parsed.Host; host != "" {
				addr = host
			} else if parsed.Opaque != "" {
				addr = parsed.Opaque
			}
		}
	}

	if strings.HasPrefix(addr, ":") {
		if len(addr) > 1 && addr[1] >= '0' && addr[1] <= '9' {
			return "0.0.0.0" + addr
		}
	}

	host, port, err := net.SplitHostPort(addr)
	if err == nil {
		if host == "" || host == "*" {
			host = "0.0.0.0"
		}
		if port == "" {
			port = "8080"
		}
		return net.JoinHostPort(host, port)
	}

	if ip := net.ParseIP(addr); ip != nil {
		return net.JoinHostPort(addr, "8080")
	}

	if !strings.Contains(addr, ":") {
		return net.JoinHostPort(addr, "8080")
	}

	return addr
}
