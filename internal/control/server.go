package control

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/The-Promised-Neverland/navlink/internal/models"
	"github.com/The-Promised-Neverland/navlink/internal/navsource"
	"github.com/The-Promised-Neverland/navlink/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	addr       string
	controller *Controller
	ingest     *navsource.Ingest
	started    time.Time
	// metrics is swapped in tests; gopsutil probes are slow on some hosts.
	metrics func() *models.HostMetrics
}

func NewServer(addr string, controller *Controller, ingest *navsource.Ingest) *Server {
	return &Server{
		addr:       addr,
		controller: controller,
		ingest:     ingest,
		started:    time.Now(),
		metrics:    HostMetrics,
	}
}

func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(), corsMiddleware())

	router.GET("/health", s.health)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/command", s.command)
		v1.POST("/navigation", s.navigation)
	}
	return router
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: s.Router(), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	logger.Log.Info("Control server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) command(c *gin.Context) {
	var cmd models.Command
	if err := c.ShouldBindJSON(&cmd); err != nil {
		logger.Log.Debug("Undecodable command", "err", err)
		c.JSON(http.StatusOK, models.Response{})
		return
	}
	c.JSON(http.StatusOK, s.controller.Handle(c.Request.Context(), cmd))
}

func (s *Server) navigation(c *gin.Context) {
	var ev models.NavigationEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if ev.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}
	if s.ingest != nil {
		s.ingest.Publish(ev)
	}
	c.Status(http.StatusAccepted)
}

func (s *Server) health(c *gin.Context) {
	a := s.controller.agent
	health := models.HealthCheck{
		Status:      "Healthy",
		Uptime:      uptime(s.started),
		Broker:      a.Status().String(),
		State:       a.State().String(),
		HostMetrics: s.metrics(),
	}
	c.JSON(http.StatusOK, models.Message{Type: "health_check", Payload: health})
}
