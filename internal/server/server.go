package server

import (
	"net"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"score-annotator/internal/annotation"
	"score-annotator/internal/config"
	"score-annotator/internal/handler"
	"score-annotator/internal/hub"
)

// Server Fiber server wrapper
type Server struct {
	app               *fiber.App
	cfg               *config.Config
	log               *zap.Logger
	healthHandler     *handler.HealthHandler
	annotationHandler *handler.AnnotationHandler
	wsHandler         *handler.AnnotationWSHandler
}

// New creates the server. redis may be nil when the presence mirror is off.
func New(cfg *config.Config, db *gorm.DB, h *hub.Hub, redis handler.Pinger, log *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "Score Annotator Sync",
		ServerHeader:          "Fiber",
		StrictRouting:         true,
		CaseSensitive:         true,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           cfg.Server.IdleTimeout,
		Prefork:               false, // websocket state is process local
		ReadBufferSize:        16384,
		WriteBufferSize:       16384,
		DisableStartupMessage: true,
	})

	return &Server{
		app:               app,
		cfg:               cfg,
		log:               log,
		healthHandler:     handler.NewHealthHandler(db, redis, h),
		annotationHandler: handler.NewAnnotationHandler(annotation.NewStore(db), log),
		wsHandler:         handler.NewAnnotationWSHandler(h, cfg.WebSocket, log),
	}
}

// App exposes the underlying Fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// SetupMiddleware middleware
func (s *Server) SetupMiddleware() {
	// panic recovery
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// access log
	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "UTC",
	}))

	// CORS
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: s.cfg.CORS.AllowOrigins,
		AllowHeaders: s.cfg.CORS.AllowHeaders,
		AllowMethods: "GET, OPTIONS",
	}))
}

// SetupRoutes routes
func (s *Server) SetupRoutes() {
	s.app.Get("/health", s.healthHandler.Check)
	s.app.Get("/health/live", s.healthHandler.Liveness)
	s.app.Get("/health/ready", s.healthHandler.Readiness)
	s.app.Get("/stats", s.healthHandler.Stats)

	api := s.app.Group("/api")
	api.Get("/songs/:songId/annotations", s.annotationHandler.ListBySong)

	// per IP upgrade rate limit
	upgradeLimiter := limiter.New(limiter.Config{
		Max:        s.cfg.Server.UpgradeLimit,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many connection attempts, please try again later",
			})
		},
	})

	s.app.Get("/ws", upgradeLimiter, func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		c.Locals("ip", c.IP())
		return c.Next()
	}, websocket.New(s.wsHandler.HandleWebSocket, websocket.Config{
		ReadBufferSize:  s.cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: s.cfg.WebSocket.WriteBufferSize,
	}))
}

// Listen serves on the configured port until Shutdown.
func (s *Server) Listen() error {
	s.log.Info("server starting",
		zap.String("addr", s.cfg.Server.Port),
		zap.String("ws", "ws://localhost"+s.cfg.Server.Port+"/ws"),
	)
	return s.app.Listen(s.cfg.Server.Port)
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	return s.app.Listener(ln)
}

// Shutdown stops accepting connections and waits for open ones up to the
// configured timeout.
func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(s.cfg.Server.ShutdownTimeout)
}
