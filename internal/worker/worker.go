package worker

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/capacity-manager/internal/logger"
)

type Config struct {
	Port        int
	BaseLatency time.Duration
	Variance    time.Duration
	ErrorRate   float64
}

// Worker is a simulated workflow backend for local runs and load tests. It
// answers the health contract the balancer probes and burns configurable
// latency per work request.
type Worker struct {
	config     Config
	httpServer *http.Server
	inflight   atomic.Int64
	processed  atomic.Int64
}

func New(cfg Config) *Worker {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.BaseLatency == 0 {
		cfg.BaseLatency = 50 * time.Millisecond
	}
	return &Worker{config: cfg}
}

func (w *Worker) Start() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", w.handleHealth)
	router.GET("/info", w.handleInfo)
	router.POST("/work", w.handleWork)
	router.Any("/workflow/*path", w.handleWork)

	w.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", w.config.Port),
		Handler: router,
	}

	go func() {
		if err := w.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("Worker server error: %v", err)
		}
	}()

	logger.Infof("Worker listening on port %d", w.config.Port)
	return nil
}

func (w *Worker) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return w.httpServer.Shutdown(ctx)
}

func (w *Worker) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (w *Worker) handleInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"instance_index": os.Getenv("INSTANCE_INDEX"),
		"inflight":       w.inflight.Load(),
		"processed":      w.processed.Load(),
	})
}

func (w *Worker) handleWork(c *gin.Context) {
	w.inflight.Add(1)
	defer w.inflight.Add(-1)

	latency := w.config.BaseLatency
	if w.config.Variance > 0 {
		latency += time.Duration(rand.Int63n(int64(w.config.Variance)))
	}
	time.Sleep(latency)

	w.processed.Add(1)

	if w.config.ErrorRate > 0 && rand.Float64() < w.config.ErrorRate {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "simulated failure"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "done",
		"latency_ms": latency.Milliseconds(),
	})
}
