package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/pipelinecrm/leadhub/internal/core/domain"
	"github.com/pipelinecrm/leadhub/internal/pkg/metrics"
)

const (
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = (pongWait * 9) / 10
	maxFrameBytes = 16 << 10

	defaultHandshakeTimeout = 10 * time.Second
	defaultSendBuffer       = 64
	defaultFrameRate        = 20
	defaultFrameBurst       = 40
)

// Authenticator admits a connection from its handshake payload.
type Authenticator interface {
	Authenticate(ctx context.Context, p HandshakePayload) (Session, error)
}

// ServerConfig tunes the WebSocket endpoint.
type ServerConfig struct {
	// AllowedOrigins lists browser origins allowed to connect. Empty keeps
	// the same-origin check; "*" allows any origin.
	AllowedOrigins   []string
	HandshakeTimeout time.Duration
	SendBuffer       int
	// FrameRate and FrameBurst bound the client frames handled per second
	// on one connection. Frames over the limit are answered with an error.
	FrameRate  float64
	FrameBurst int
}

// Server upgrades HTTP requests to WebSocket connections and runs the
// handshake, reader and writer for each of them.
type Server struct {
	auth     Authenticator
	broker   *RoomBroker
	cfg      ServerConfig
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewServer(auth Authenticator, broker *RoomBroker, cfg ServerConfig, log zerolog.Logger) *Server {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaultSendBuffer
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = defaultFrameRate
	}
	if cfg.FrameBurst <= 0 {
		cfg.FrameBurst = defaultFrameBurst
	}
	return &Server{
		auth:   auth,
		broker: broker,
		cfg:    cfg,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: cfg.HandshakeTimeout,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			CheckOrigin:      originChecker(cfg.AllowedOrigins),
		},
		log: log,
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		s.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameBytes)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	session, err := s.handshake(ctx, conn)
	if err != nil {
		s.reject(conn)
		return
	}

	client := NewClient(session, s.cfg.SendBuffer)
	log := s.log.With().
		Str("connection_id", session.ConnectionID).
		Str("subject_id", session.Identity.SubjectID).
		Logger()

	s.broker.Register(client)
	metrics.RealtimeConnections.Inc()
	defer metrics.RealtimeConnections.Dec()
	log.Info().Msg("client connected")

	client.enqueue(encode(serverFrame{Event: EventConnected, Data: connectedEvent{
		ConnectionID: session.ConnectionID,
		User:         session.Identity,
	}}))

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writePump(conn, client, log)
	}()

	s.readPump(ctx, conn, client, log)

	s.broker.Disconnect(client)
	<-writerDone
	log.Info().Msg("client disconnected")
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (Session, error) {
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.HandshakeTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return Session{}, fmt.Errorf("read handshake: %w", err)
	}

	var p HandshakePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return Session{}, fmt.Errorf("%w: malformed handshake", domain.ErrNoToken)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.HandshakeTimeout)
	defer cancel()
	return s.auth.Authenticate(ctx, p)
}

// reject sends the single connect_error frame and closes. The cause is
// never sent to the client.
func (s *Server) reject(conn *websocket.Conn) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.TextMessage, encode(serverFrame{
		Event: EventConnectError,
		Error: "Authentication error",
	}))
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication failed"))
}

func (s *Server) readPump(ctx context.Context, conn *websocket.Conn, c *Client, log zerolog.Logger) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	limiter := rate.NewLimiter(rate.Limit(s.cfg.FrameRate), s.cfg.FrameBurst)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("read failed")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		if !limiter.Allow() {
			c.enqueue(encode(serverFrame{Event: EventError, Error: "rate limit exceeded"}))
			continue
		}
		s.handleFrame(ctx, c, data)
	}
}

func (s *Server) handleFrame(ctx context.Context, c *Client, data []byte) {
	var f clientFrame
	if err := json.Unmarshal(data, &f); err != nil || f.Event == "" {
		c.enqueue(encode(serverFrame{Event: EventError, Error: "malformed frame"}))
		return
	}

	switch f.Event {
	case EventJoinRoom:
		var d joinRoomData
		if !decodeData(c, f, &d) {
			return
		}
		room, err := s.broker.Join(c, d.Room)
		s.reply(c, f.ID, joinRoomData{Room: room}, err)

	case EventSendMessage:
		var d sendMessageData
		if !decodeData(c, f, &d) {
			return
		}
		msg, err := s.broker.Send(ctx, c, d.Text, d.Room)
		s.reply(c, f.ID, msg, err)

	case EventTyping:
		var d typingData
		if !decodeData(c, f, &d) {
			return
		}
		if err := s.broker.Typing(c, d.Room, d.IsTyping); err != nil {
			s.reply(c, f.ID, nil, err)
		}

	default:
		c.enqueue(encode(serverFrame{Event: EventError, ID: f.ID, Error: "unknown event " + f.Event}))
	}
}

func decodeData(c *Client, f clientFrame, dst any) bool {
	if len(f.Data) == 0 {
		return true
	}
	if err := json.Unmarshal(f.Data, dst); err != nil {
		c.enqueue(encode(serverFrame{Event: EventError, ID: f.ID, Error: "malformed " + f.Event + " data"}))
		return false
	}
	return true
}

// reply acks a client request that carried an id. Failures without an id
// are reported as error frames.
func (s *Server) reply(c *Client, id string, data any, err error) {
	switch {
	case id != "" && err != nil:
		c.enqueue(encode(serverFrame{Event: EventAck, ID: id, Error: clientError(err)}))
	case id != "":
		c.enqueue(encode(serverFrame{Event: EventAck, ID: id, Data: data}))
	case err != nil:
		c.enqueue(encode(serverFrame{Event: EventError, Error: clientError(err)}))
	}
}

func (s *Server) writePump(conn *websocket.Conn, c *Client, log zerolog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer conn.Close()

	var expired <-chan time.Time
	if exp := c.session.TokenExpiry; !exp.IsZero() {
		t := time.NewTimer(time.Until(exp))
		defer t.Stop()
		expired = t.C
	}

	for {
		// Frames still queued for a disconnected client are dropped.
		if c.closed() {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}

		select {
		case frame := <-c.Outbound():
			if c.closed() {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Debug().Err(err).Msg("write failed")
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-expired:
			s.broker.Disconnect(c)
			log.Info().Msg("session expired")
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.TextMessage, encode(serverFrame{Event: EventSessionExpired}))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "session expired"))
			return

		case <-c.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// clientError is the text sent back for a failed request. Only
// validation details reach the client.
func clientError(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		msg := err.Error()
		if i := strings.Index(msg, domain.ErrValidation.Error()); i >= 0 {
			return msg[i:]
		}
		return domain.ErrValidation.Error()
	case errors.Is(err, ErrClientClosed):
		return ErrClientClosed.Error()
	default:
		return "Internal server error"
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
