package server

import (
	"ctchen222/tictactoe-rooms/internal/api/controller"
	"ctchen222/tictactoe-rooms/internal/api/response"
	"ctchen222/tictactoe-rooms/internal/api/service"
	"ctchen222/tictactoe-rooms/internal/hub"
	"ctchen222/tictactoe-rooms/internal/hub/types"
	"ctchen222/tictactoe-rooms/internal/player"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("server")

// Option configures a Server.
type Option func(*Server)

// WithUsers enables the account routes and token authentication on /ws.
func WithUsers(users service.UserService) Option {
	return func(s *Server) {
		s.users = users
		s.userController = controller.NewUserController(users)
	}
}

// WithResults enables GET /api/results.
func WithResults(results service.ResultService) Option {
	return func(s *Server) {
		s.resultController = controller.NewResultController(results)
	}
}

// WithMetrics serves h on GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithSendBuffer sets the outbound queue length of each WebSocket player.
func WithSendBuffer(n int) Option {
	return func(s *Server) {
		s.sendBuffer = n
	}
}

type Server struct {
	hub              *hub.Hub
	users            service.UserService
	userController   *controller.UserController
	resultController *controller.ResultController
	metrics          http.Handler
	sendBuffer       int
	upgrader         websocket.Upgrader
	engine           *gin.Engine
}

func NewServer(h *hub.Hub, opts ...Option) *Server {
	s := &Server{
		hub: h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = s.routes()
	return s
}

// Engine returns the HTTP handler.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/health", func(c *gin.Context) {
		response.SuccessResponseContent(c, "ok")
	})
	r.GET("/rooms", s.handleListRooms)
	r.GET("/ws", s.handleWebSocket)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics))
	}

	api := r.Group("/api")
	if s.userController != nil {
		users := api.Group("/users")
		users.POST("/register", s.userController.Register)
		users.POST("/login", s.userController.Login)
		users.POST("/guest", s.userController.GuestLogin)
	}
	if s.resultController != nil {
		api.GET("/results", s.resultController.List)
	}
	return r
}

// requestLogger logs every HTTP request through slog.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.DebugContext(c.Request.Context(), "HTTP request",
			"http.method", c.Request.Method,
			"http.path", c.FullPath(),
			"http.status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func (s *Server) handleListRooms(c *gin.Context) {
	rooms, err := s.hub.Rooms(c.Request.Context())
	if err != nil {
		response.ErrorResponse(c, http.StatusServiceUnavailable, "room registry unavailable")
		return
	}
	response.SuccessResponseList(c, rooms)
}

// handleWebSocket's only responsibility is to resolve the player id, upgrade
// the connection and pass a registration request to the hub. A token query
// parameter identifies a registered user; otherwise the playerId parameter
// (a guest id) is used, or a fresh one is generated.
func (s *Server) handleWebSocket(c *gin.Context) {
	r := c.Request
	ctx, span := tracer.Start(r.Context(), "server.handleWebSocket", trace.WithAttributes(
		attribute.String("http.url", r.URL.Path),
		attribute.String("http.method", r.Method),
	))
	defer span.End()

	playerID, name, err := s.resolvePlayer(c)
	if err != nil {
		slog.WarnContext(ctx, "Rejected WebSocket identity", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Rejected WebSocket identity")
		response.ErrorResponseFrom(c, err, http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("player.id", playerID))

	conn, err := s.upgrader.Upgrade(c.Writer, r, nil)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to upgrade connection", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to upgrade connection")
		return
	}

	p := player.NewPlayer(playerID, conn, s.sendBuffer)
	p.Name = name

	// Send the registration request to the hub for processing.
	req := &types.RegistrationRequest{
		Player: p,
		Ctx:    ctx, // Pass the context with the span
	}
	select {
	case s.hub.Register() <- req:
	case <-r.Context().Done():
		conn.Close()
	}
}

func (s *Server) resolvePlayer(c *gin.Context) (id, name string, err error) {
	if token := c.Query("token"); token != "" && s.users != nil {
		identity, err := s.users.Authenticate(c.Request.Context(), token)
		if err != nil {
			return "", "", err
		}
		return identity.PlayerID, identity.Username, nil
	}

	if guest := c.Query("playerId"); guest != "" {
		parsed, err := uuid.Parse(guest)
		if err != nil {
			return "", "", response.NewError(http.StatusBadRequest, "playerId must be a UUID")
		}
		return parsed.String(), "Guest", nil
	}
	return uuid.NewString(), "Guest", nil
}
