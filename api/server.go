package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/capacity-manager/api/handlers"
	"github.com/OldStager01/capacity-manager/api/middleware"
	"github.com/OldStager01/capacity-manager/api/websocket"
	"github.com/OldStager01/capacity-manager/internal/balancer"
	"github.com/OldStager01/capacity-manager/internal/collector"
	"github.com/OldStager01/capacity-manager/internal/events"
	"github.com/OldStager01/capacity-manager/internal/manager"
	"github.com/OldStager01/capacity-manager/internal/metrics"
	"github.com/OldStager01/capacity-manager/internal/orchestrator"
	"github.com/OldStager01/capacity-manager/pkg/config"
)

// Dependencies are the subsystems the API surfaces. All are required except
// Instruments, which disables /metrics when nil.
type Dependencies struct {
	Manager      *manager.Manager
	Collector    *collector.Collector
	Balancer     *balancer.LoadBalancer
	Orchestrator orchestrator.Orchestrator
	Bus          *events.EventBus
	Instruments  *metrics.Instruments
}

type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	config     config.APIConfig
	deps       Dependencies
	wsHub      *websocket.Hub
	wsBridge   *websocket.EventBridge
}

func NewServer(cfg config.APIConfig, wsCfg config.WebSocketConfig, mode string, deps Dependencies) *Server {
	if mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	wsHub := websocket.NewHub(wsCfg)

	s := &Server{
		router: router,
		config: cfg,
		deps:   deps,
		wsHub:  wsHub,
	}

	s.setupMiddleware()
	s.setupRoutes()

	go wsHub.Run()

	if deps.Bus != nil {
		s.wsBridge = websocket.NewEventBridge(wsHub, deps.Bus.SubscribeAll())
		s.wsBridge.Start()
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.CORS(middleware.CORSFromConfig(s.config.CORS)))
	s.router.Use(middleware.TraceID())
	s.router.Use(middleware.RequestLogger(s.deps.Manager.ServiceName()))
	s.router.Use(middleware.HTTPMetrics(s.deps.Instruments))
}

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.deps.Orchestrator)
	statusHandler := handlers.NewStatusHandler(s.deps.Manager, s.deps.Collector)
	scalingHandler := handlers.NewScalingHandler(s.deps.Manager)
	proxyHandler := handlers.NewProxyHandler(s.deps.Balancer, s.deps.Collector)

	s.router.GET("/health", healthHandler.Health)
	s.router.GET("/health/live", healthHandler.Live)

	if s.deps.Instruments != nil {
		s.router.GET("/metrics", gin.WrapH(s.deps.Instruments.Handler()))
	}

	s.router.GET("/ws", websocket.ServeWebSocket(s.wsHub))

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/stats", statusHandler.GetStats)
		v1.GET("/scaling/history", statusHandler.GetScalingHistory)
		v1.GET("/alerts", statusHandler.GetAlerts)
		v1.GET("/metrics/history", statusHandler.GetMetricHistory)
		v1.POST("/scaling/manual", scalingHandler.ManualScale)
	}

	// Workflow traffic enters here and fans out over the balanced instances.
	s.router.Any("/workflow/*path", proxyHandler.Forward)
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	idleTimeout := s.config.IdleTimeout
	if idleTimeout == 0 {
		idleTimeout = 60 * time.Second
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  idleTimeout,
	}

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.wsBridge != nil {
		s.wsBridge.Stop()
	}

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Router() *gin.Engine {
	return s.router
}
