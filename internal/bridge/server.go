package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/The-Promised-Neverland/navlink/internal/models"
	"github.com/The-Promised-Neverland/navlink/pkg/logger"
)

const keepAlive = 30 * time.Second

type Server struct {
	hub        *Hub
	staticDir  string
	started    time.Time
	upgrader   websocket.Upgrader
	pingPeriod time.Duration
	keepAlive  time.Duration
}

func NewServer(hub *Hub, staticDir string) *Server {
	return &Server{
		hub:       hub,
		staticDir: staticDir,
		started:   time.Now(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		pingPeriod: pingPeriod,
		keepAlive:  keepAlive,
	}
}

func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), corsMiddleware())

	router.GET("/health", s.health)
	router.GET("/ws/browsing", s.serveWS)
	router.GET("/sse/browsing", s.serveSSE)
	if s.staticDir != "" {
		router.NoRoute(gin.WrapH(http.FileServer(http.Dir(s.staticDir))))
	}
	return router
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: s.Router(), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	logger.Log.Info("Bridge listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	// Hijacked websocket connections are not tracked by Shutdown.
	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) serveWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Warn("Failed to upgrade websocket", "err", err)
		return
	}
	client := s.hub.Register(uuid.NewString())
	go s.writePump(conn, client)
	s.readPump(conn, client)
}

func (s *Server) serveSSE(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	client := s.hub.Register(uuid.NewString())
	defer s.hub.Unregister(client)
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case data, ok := <-client.Send:
			if !ok {
				return
			}
			fmt.Fprintf(c.Writer, "data: %s\n\n", data)
			c.Writer.Flush()
		case <-ticker.C:
			fmt.Fprint(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}

func (s *Server) health(c *gin.Context) {
	health := models.HealthCheck{
		Status:      "Healthy",
		Uptime:      int64(time.Since(s.started).Seconds()),
		Subscribers: s.hub.Len(),
	}
	c.JSON(http.StatusOK, models.Message{Type: "health_check", Payload: health})
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Origin, Cache-Control")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
