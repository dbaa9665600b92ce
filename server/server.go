// Package server exposes the gateway over HTTP: the WebSocket upgrade
// endpoint, operational info routes, and Prometheus metrics.
package server

import (
	"strings"

	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/sirsinexus/realtime-gateway/config"
	"github.com/sirsinexus/realtime-gateway/src/auth"
	"github.com/sirsinexus/realtime-gateway/src/gateway"
)

// Server wires the gateway service to the network.
type Server struct {
	cfg      *config.Config
	verifier *auth.Verifier
	svc      *gateway.Service
	logger   zerolog.Logger

	app      *fiber.App
	srv      *fasthttp.Server
	upgrader websocket.FastHTTPUpgrader
	metrics  fasthttp.RequestHandler
}

// New creates the server. The WebSocket upgrade uses a raw fasthttp
// handler since Fiber v3 does not expose *fasthttp.RequestCtx.
func New(cfg *config.Config, verifier *auth.Verifier, svc *gateway.Service, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		verifier: verifier,
		svc:      svc,
		logger:   logger.With().Str("component", "server").Logger(),
		upgrader: websocket.FastHTTPUpgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
		},
		metrics: fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()),
	}

	s.app = fiber.New()
	s.app.Get("/healthz", s.handleHealth)
	s.app.Get("/ws/info", s.handleInfo)

	s.srv = &fasthttp.Server{Handler: s.route}
	return s
}

func (s *Server) handleHealth(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleInfo(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"websocket": true,
		"endpoint":  "/ws",
		"clients":   s.svc.ConnectedUserCount(),
		"rooms":     s.svc.Rooms(),
	})
}

// route multiplexes the raw fasthttp paths (WebSocket upgrade, metrics)
// with the Fiber app.
func (s *Server) route(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/ws":
		s.handleWS(ctx)
	case "/metrics":
		s.metrics(ctx)
	default:
		s.app.Handler()(ctx)
	}
}

// handleWS authenticates the handshake and upgrades the connection.
// A bad token is rejected before the upgrade, so the client never
// becomes an addressable connection.
func (s *Server) handleWS(ctx *fasthttp.RequestCtx) {
	upgrade := string(ctx.Request.Header.Peek("Upgrade"))
	if !strings.EqualFold(upgrade, "websocket") {
		ctx.SetStatusCode(fasthttp.StatusUpgradeRequired)
		ctx.SetBodyString(`{"error":"upgrade_required","message":"WebSocket upgrade required"}`)
		return
	}

	token := string(ctx.QueryArgs().Peek("token"))
	if token == "" {
		token = auth.BearerToken(string(ctx.Request.Header.Peek("Authorization")))
	}

	ident, err := s.verifier.Verify(token)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket authentication failed")
		ctx.SetStatusCode(fasthttp.StatusUnauthorized)
		ctx.SetBodyString(`{"error":"unauthorized","message":"Invalid authentication token"}`)
		return
	}

	err = s.upgrader.Upgrade(ctx, func(conn *websocket.Conn) {
		client := s.svc.Attach(&wsConn{conn}, ident)
		go client.WritePump()
		client.ReadPump()
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("websocket upgrade failed")
	}
}

// Listen serves until Shutdown is called.
func (s *Server) Listen() error {
	s.logger.Info().Str("addr", s.cfg.Addr).Msg("listening")
	return s.srv.ListenAndServe(s.cfg.Addr)
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown() error {
	return s.srv.Shutdown()
}

// wsConn wraps fasthttp/websocket.Conn to satisfy types.Conn.
type wsConn struct {
	conn *websocket.Conn
}

func (w *wsConn) WriteJSON(v any) error { return w.conn.WriteJSON(v) }
func (w *wsConn) ReadJSON(v any) error  { return w.conn.ReadJSON(v) }
func (w *wsConn) Close() error          { return w.conn.Close() }
