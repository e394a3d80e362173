package server

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/oguzk/shortkit/internal/app/service"
	inthttp "github.com/oguzk/shortkit/internal/http/handler"
	"github.com/oguzk/shortkit/internal/http/middleware"
	"go.uber.org/zap"
)

// Dependencies bundles what the HTTP server needs from the rest of the app.
type Dependencies struct {
	Logger  *zap.Logger
	URLs    service.URLService
	Limiter *service.RateLimiter
	BaseURL string
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with default routes.
func New(deps Dependencies) *Server {
	app := fiber.New()

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerRoutes()
	return s
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerRoutes() {
	s.app.Use(middleware.RequestID())
	s.app.Use(middleware.Logger(s.deps.Logger))
	s.app.Use(middleware.Recovery(s.deps.Logger))
	s.app.Use(middleware.CORS())

	apiHandler := inthttp.NewAPIHandler(inthttp.APIDeps{
		Logger:  s.deps.Logger,
		URLs:    s.deps.URLs,
		Limiter: s.deps.Limiter,
		BaseURL: s.deps.BaseURL,
	})
	apiHandler.Register(s.app)

	// The catch-all /:code route must come after the API group.
	redirectHandler := inthttp.NewRedirectHandler(inthttp.RedirectDeps{
		Logger: s.deps.Logger,
		URLs:   s.deps.URLs,
	})
	redirectHandler.Register(s.app)
}
