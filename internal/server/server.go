package server

import (
	"log/slog"
	"net/http"
	"sync"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"

	"github.com/flipflow/flipflow/internal/bus"
	"github.com/flipflow/flipflow/internal/engine"
	"github.com/flipflow/flipflow/internal/storage"
	"github.com/flipflow/flipflow/internal/store"
	"github.com/flipflow/flipflow/pkg/api"
)

// Server implements the HTTP API server for the service
type Server struct {
	engine     *engine.Engine
	supervisor *engine.Supervisor
	store      store.Store
	bus        bus.Bus
	images     *storage.Images
	platforms  []api.Platform
	sockets    map[*Client]struct{}
	mu         sync.Mutex
}

// NewServer creates a new HTTP API server
func NewServer(
	eng *engine.Engine, sup *engine.Supervisor, st store.Store, b bus.Bus,
	images *storage.Images, platforms []api.Platform,
) *Server {
	return &Server{
		engine:     eng,
		supervisor: sup,
		store:      st,
		bus:        b,
		images:     images,
		platforms:  platforms,
		sockets:    map[*Client]struct{}{},
	}
}

// SetupRoutes configures and returns the HTTP router with all API
// endpoints
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(c *gin.Context, l *slog.Logger) *slog.Logger {
			return slog.Default()
		}),
	))

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set(
			"Access-Control-Allow-Methods",
			"GET, POST, PUT, DELETE, OPTIONS",
		)
		c.Writer.Header().Set(
			"Access-Control-Allow-Headers",
			"Content-Type, Authorization",
		)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	// Health check
	router.GET("/health", s.handleHealth)

	// Item endpoints
	items := router.Group("/items")
	{
		items.POST("", s.createItem)
		items.GET("", s.listItems)
		items.GET("/:itemID", s.getItem)
		items.POST("/:itemID/approve", s.approveItem)
		items.POST("/:itemID/cancel", s.cancelItem)
		items.POST("/:itemID/resume", s.resumeItem)
		items.GET("/:itemID/offers", s.listOffers)
		items.GET("/:itemID/listings", s.listListings)
		items.GET("/:itemID/comparables", s.listComparables)
		items.GET("/:itemID/messages", s.listMessages)

		// WebSocket
		items.GET("/:itemID/ws", s.handleWebSocket)
	}

	// Offer decisions
	router.POST("/offers/:offerID/decision", s.decideOffer)

	// Stored images
	router.GET("/images/*key", s.getImage)

	return router
}

func (s *Server) registerWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets[c] = struct{}{}
}

func (s *Server) unregisterWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sockets, c)
}

// CloseWebSockets closes all active WebSocket connections
func (s *Server) CloseWebSockets() {
	s.mu.Lock()
	conns := make([]*Client, 0, len(s.sockets))
	for c := range s.sockets {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}
