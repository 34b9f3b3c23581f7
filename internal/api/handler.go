package api

import (
	"net/http"
	"time"

	"broker-gateway/internal/engine"
	"broker-gateway/internal/events"
	"broker-gateway/internal/monitor"
	"broker-gateway/internal/registry"
	"broker-gateway/pkg/db"

	"github.com/gin-gonic/gin"
)

// Server wires the HTTP surface around the broker registry.
type Server struct {
	Router   *gin.Engine
	Registry *registry.Registry
	Engine   *engine.Switch
	Bus      *events.Bus
	DB       *db.Database
	Metrics  *monitor.SystemMetrics

	JWTSecret string
	Fallback  CredentialFallback
}

// CredentialFallback supplies margin-FX credentials for requests that omit
// them. Values come from the environment at startup and are handed to exactly
// one adapter call per request, never logged.
type CredentialFallback struct {
	Account  string
	Password string
	Server   string
}

func NewServer(reg *registry.Registry, sw *engine.Switch, bus *events.Bus, database *db.Database, metrics *monitor.SystemMetrics, jwtSecret string, fallback CredentialFallback) *Server {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger(metrics))
	r.Use(RateLimitMiddleware())
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(CORSMiddleware())

	s := &Server{
		Router:    r,
		Registry:  reg,
		Engine:    sw,
		Bus:       bus,
		DB:        database,
		Metrics:   metrics,
		JWTSecret: jwtSecret,
		Fallback:  fallback,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		api.GET("/metrics", s.getMetrics)
		api.GET("/brokers", s.listBrokers)

		api.GET("/balance/:broker/:account", s.getBalance)
		api.POST("/trade/:broker/:account", s.executeTrade)
		api.POST("/deposit/:broker/:account", s.deposit)
		api.POST("/withdraw/:broker/:account", s.withdraw)
		api.GET("/market-data/:symbol", s.getMarketData)

		api.GET("/engine/status", s.getEngineStatus)
		api.GET("/transfers/:broker/:account", s.listTransfers)

		// Control surface requires an operator token.
		protected := api.Group("")
		protected.Use(AuthMiddleware(s.JWTSecret))
		{
			protected.POST("/engine/start", s.startEngine)
			protected.POST("/engine/stop", s.stopEngine)
			protected.POST("/engine/emergency-stop", s.emergencyStopEngine)
			protected.POST("/transfers/:id/settle", s.settleTransfer)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) getMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.Metrics.GetSnapshot())
}

func (s *Server) listBrokers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"brokers": s.Registry.Kinds()})
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
