package signaling

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pairwave/matchrelay/internal/match"
	"github.com/pairwave/matchrelay/internal/metrics"
	"github.com/pairwave/matchrelay/internal/protocol"
	"github.com/pairwave/matchrelay/internal/ratelimit"
)

const wsWriteWait = 1 * time.Second

// Config wires the runtime dependencies for the signaling layer.
type Config struct {
	Service *match.Service

	// AllowedOrigins restricts browser origins on upgrade. Empty allows all
	// (dev mode).
	AllowedOrigins []string

	// RegisterTimeout bounds how long a connection may sit unregistered.
	RegisterTimeout time.Duration

	// IdleTimeout closes connections with no inbound traffic (pongs count).
	IdleTimeout  time.Duration
	PingInterval time.Duration

	MaxMessageBytes      int64
	MaxMessagesPerSecond int
}

type Server struct {
	svc *match.Service
	cfg Config

	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*clientConn]struct{}
}

func NewServer(cfg Config) *Server {
	s := &Server{
		svc:   cfg.Service,
		cfg:   cfg,
		conns: make(map[*clientConn]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r.Header.Get("Origin"), cfg.AllowedOrigins)
		},
	}
	return s
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", s.handleWS)
}

// Close terminates all live signaling connections. Each closing connection
// drives its own Disconnect teardown through the read loop.
func (s *Server) Close() {
	s.mu.Lock()
	conns := make([]*clientConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.conns = make(map[*clientConn]struct{})
	s.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
}

func (s *Server) registerTimeout() time.Duration {
	if s.cfg.RegisterTimeout <= 0 {
		return 5 * time.Second
	}
	return s.cfg.RegisterTimeout
}

func (s *Server) idleTimeout() time.Duration {
	if s.cfg.IdleTimeout <= 0 {
		return 60 * time.Second
	}
	return s.cfg.IdleTimeout
}

func (s *Server) pingInterval() time.Duration {
	if s.cfg.PingInterval <= 0 {
		return 20 * time.Second
	}
	return s.cfg.PingInterval
}

func (s *Server) maxMessageBytes() int64 {
	if s.cfg.MaxMessageBytes <= 0 {
		return 64 * 1024
	}
	return s.cfg.MaxMessageBytes
}

func (s *Server) maxMessagesPerSecond() int {
	if s.cfg.MaxMessagesPerSecond <= 0 {
		return 50
	}
	return s.cfg.MaxMessagesPerSecond
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	cc := newClientConn(conn)

	s.mu.Lock()
	s.conns[cc] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.svc.Disconnect(cc.ID())
		s.mu.Lock()
		delete(s.conns, cc)
		s.mu.Unlock()
		cc.close()
	}()

	s.run(cc)
}

func (s *Server) run(cc *clientConn) {
	conn := cc.conn
	conn.SetReadLimit(s.maxMessageBytes())

	idle := s.idleTimeout()
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(idle))
	})

	pingDone := make(chan struct{})
	defer close(pingDone)
	go s.pingLoop(cc, pingDone)

	limiter := ratelimit.NewTokenBucket(
		ratelimit.RealClock{},
		int64(s.maxMessagesPerSecond()),
		int64(s.maxMessagesPerSecond()),
	)

	_ = conn.SetReadDeadline(time.Now().Add(s.registerTimeout()))

	registered := false
	var userID string

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if !registered && isTimeout(err) {
				cc.closeWith(websocket.ClosePolicyViolation, "register timeout")
			}
			return
		}
		// The rate limit applies after reading so bytes already in the TCP
		// receive buffer are consumed; closing with unread data can turn into
		// an abortive close that hides the close reason from the client.
		if !limiter.Allow(1) {
			s.svc.Metrics().Inc(metrics.EventRateLimited)
			cc.fail("rate_limited", "message rate limit exceeded", websocket.ClosePolicyViolation)
			return
		}
		if msgType != websocket.TextMessage {
			cc.fail("bad_message", "expected text message", websocket.CloseUnsupportedData)
			return
		}

		msg, err := protocol.ParseClientMessage(data)
		if err != nil {
			s.svc.Metrics().Inc(metrics.EventBadMessage)
			cc.fail("bad_message", err.Error(), websocket.ClosePolicyViolation)
			return
		}

		if !registered {
			if msg.Type != protocol.MessageTypeRegister {
				cc.fail("not_registered", "first message must be register", websocket.ClosePolicyViolation)
				return
			}
			userID = msg.UserID
			s.svc.Register(userID, cc)
			registered = true
			_ = conn.SetReadDeadline(time.Now().Add(idle))
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(idle))

		switch msg.Type {
		case protocol.MessageTypeRegister:
			// Tolerated after the first: clients re-send registration on
			// flaky reconnect logic. Same user id required.
			if msg.UserID != userID {
				cc.fail("bad_message", "register user id changed mid-connection", websocket.ClosePolicyViolation)
				return
			}
			s.svc.Register(userID, cc)
		case protocol.MessageTypeFindMatch:
			s.dispatchMatch(cc, userID, s.svc.RequestMatch)
		case protocol.MessageTypeNext:
			s.dispatchMatch(cc, userID, s.svc.Next)
		case protocol.MessageTypeCancelSearch:
			s.svc.CancelSearch(userID)
		case protocol.MessageTypeLeave:
			s.svc.Leave(userID)
		default:
			// Validation guarantees everything else is a relayed kind.
			s.svc.Relay(msg.Type, userID, msg.Payload)
		}
	}
}

// dispatchMatch runs a match request (find_match or next) and reports the
// outcome to the caller. Protocol misuse is reported, not fatal: the
// connection stays up.
func (s *Server) dispatchMatch(cc *clientConn, userID string, op func(string) (match.Outcome, error)) {
	outcome, err := op(userID)
	switch {
	case errors.Is(err, match.ErrAlreadyPaired):
		cc.sendError("already_paired", "leave the current chat before searching again")
	case errors.Is(err, match.ErrNotRegistered):
		cc.sendError("not_registered", "register before searching")
	case err != nil:
		cc.sendError("internal_error", err.Error())
	case outcome == match.OutcomeWaiting:
		_ = cc.Send(protocol.ServerMessage{Type: protocol.MessageTypeWaiting})
	}
	// OutcomePaired: both sides were already notified with matched.
}

func (s *Server) pingLoop(cc *clientConn, done <-chan struct{}) {
	ticker := time.NewTicker(s.pingInterval())
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := cc.ping(); err != nil {
				return
			}
		}
	}
}

func originAllowed(origin string, allowed []string) bool {
	if origin == "" || len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimRight(a, "/"), strings.TrimRight(origin, "/")) {
			return true
		}
	}
	return false
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
