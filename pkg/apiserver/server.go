package apiserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jainyogya07/monolith/pkg/apiserver/handlers"
	"github.com/jainyogya07/monolith/pkg/apiserver/middleware"
	"github.com/jainyogya07/monolith/pkg/config"
)

// Engine is the admission engine surface the HTTP adapter needs.
type Engine interface {
	handlers.Admitter
	handlers.LoadController
}

type Server struct {
	router *gin.Engine
	engine Engine
	cfg    *config.Config
	logger *zap.Logger
}

func NewServer(engine Engine, cfg *config.Config, logger *zap.Logger) *Server {
	s := &Server{
		engine: engine,
		cfg:    cfg,
		logger: logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.CORS())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "Monolith Online"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	taskHandler := handlers.NewTaskHandler(s.engine, s.logger)
	r.POST("/task", taskHandler.Submit)

	adminHandler := handlers.NewAdminHandler(s.engine, s.cfg.Server.BlockDuration, s.logger)
	r.GET("/block", adminHandler.Block)
	r.GET("/telemetry", adminHandler.Telemetry)

	admin := r.Group("/admin")
	{
		admin.POST("/stress", adminHandler.Stress)
	}

	s.router = r
}

func (s *Server) Router() *gin.Engine {
	return s.router
}
