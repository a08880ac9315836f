// Package match implements the matchmaking queue, the session lifecycle and
// the signaling relay.
//
// All pairing decisions run under a single service mutex: two racing
// find_match calls must not both observe a queue of length >= 2 and
// double-pair a user, and a leave must not race a pairing for the same user.
// Relay traffic does not take that mutex; it reads presence and the
// connection registry, which synchronize themselves.
package match

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/pairwave/matchrelay/internal/directory"
	"github.com/pairwave/matchrelay/internal/metrics"
	"github.com/pairwave/matchrelay/internal/presence"
	"github.com/pairwave/matchrelay/internal/protocol"
	"github.com/pairwave/matchrelay/internal/registry"
)

// Outcome reports what a match request did for the calling user.
type Outcome int

const (
	// OutcomeWaiting: the user was enqueued (or already was) and waits for a
	// partner. No timeout applies; a user may wait indefinitely.
	OutcomeWaiting Outcome = iota
	// OutcomePaired: the request completed a pairing. Both members have been
	// notified; the caller does not need to send anything further.
	OutcomePaired
)

// Config wires the service's collaborators.
type Config struct {
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Registry  *registry.Registry
	Presence  *presence.Tracker
	Directory directory.Directory

	// ProfileLookupTimeout bounds the directory call that enriches matched
	// notifications. Zero means a 2s default.
	ProfileLookupTimeout time.Duration
}

type Service struct {
	log           *slog.Logger
	metrics       *metrics.Metrics
	registry      *registry.Registry
	presence      *presence.Tracker
	directory     directory.Directory
	lookupTimeout time.Duration

	mu    sync.Mutex
	queue []string // user ids, FIFO by enqueue time
}

func NewService(cfg Config) *Service {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.New()
	}
	timeout := cfg.ProfileLookupTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Service{
		log:           log,
		metrics:       m,
		registry:      cfg.Registry,
		presence:      cfg.Presence,
		directory:     cfg.Directory,
		lookupTimeout: timeout,
	}
}

func (s *Service) Metrics() *metrics.Metrics { return s.metrics }

// Register records a live connection for userID, replacing any previous one.
// Idempotent; an existing matchmaking state (e.g. Paired) survives a
// connection replacement, only the transport handle changes.
func (s *Service) Register(userID string, conn registry.Conn) {
	if old := s.registry.Register(userID, conn); old != nil && old.ID() != conn.ID() {
		s.metrics.Inc(metrics.EventRegisterReplaced)
		s.log.Info("connection replaced", "user_id", userID, "conn_id", conn.ID())
	}
	if status, _ := s.presence.StatusOf(userID); status == presence.StatusUnknown {
		s.presence.SetIdle(userID)
	}
}

// RequestMatch enqueues userID and pairs it with the longest-waiting user if
// one is available.
//
// Strict FIFO, no randomization: under sustained load, wait time is bounded
// by queue depth. The enqueue/dequeue contract here is the extension point a
// preference filter would hook into.
func (s *Service) RequestMatch(userID string) (Outcome, error) {
	s.mu.Lock()

	switch status, _ := s.presence.StatusOf(userID); status {
	case presence.StatusUnknown:
		s.mu.Unlock()
		return 0, ErrNotRegistered
	case presence.StatusPaired:
		s.mu.Unlock()
		s.metrics.Inc(metrics.EventAlreadyPaired)
		return 0, ErrAlreadyPaired
	case presence.StatusWaiting:
		if slices.Contains(s.queue, userID) {
			// Duplicate find_match while queued: idempotent, no second entry.
			s.mu.Unlock()
			return OutcomeWaiting, nil
		}
	}

	s.queue = append(s.queue, userID)
	s.presence.SetWaiting(userID)
	s.metrics.Inc(metrics.EventQueueEnqueued)

	if len(s.queue) < 2 {
		s.mu.Unlock()
		return OutcomeWaiting, nil
	}

	// Pair the two oldest entries. The first-dequeued user initiates the
	// peer-to-peer negotiation; the role is assigned here and transmitted
	// explicitly rather than derived from id comparison.
	initiator, responder := s.queue[0], s.queue[1]
	s.queue = slices.Delete(s.queue, 0, 2)
	s.presence.SetPaired(initiator, responder)
	s.mu.Unlock()

	s.metrics.Inc(metrics.EventPairCreated)
	s.log.Info("pair created", "initiator", initiator, "responder", responder)
	s.notifyMatched(initiator, responder)

	return OutcomePaired, nil
}

// CancelSearch removes userID from the waiting queue. A cancel that arrives
// after a pairing already completed is a no-op: the session is Paired now and
// must be torn down via Leave or Next.
func (s *Service) CancelSearch(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.Index(s.queue, userID)
	if i < 0 {
		return
	}
	s.queue = slices.Delete(s.queue, i, i+1)
	s.presence.SetIdle(userID)
	s.metrics.Inc(metrics.EventQueueCancelled)
}

// Leave tears down userID's current pairing or search. If paired, the
// remaining partner is notified once with the given reason and both sides
// return to Idle.
func (s *Service) Leave(userID string) {
	s.leave(userID, protocol.LeaveReasonLeave)
}

func (s *Service) leave(userID string, reason protocol.LeaveReason) {
	s.mu.Lock()
	status, _ := s.presence.StatusOf(userID)
	switch status {
	case presence.StatusPaired:
		partner := s.presence.Unpair(userID)
		s.mu.Unlock()
		s.metrics.Inc(metrics.EventPairTornDown)
		s.log.Info("pair torn down", "user_id", userID, "partner", partner, "reason", string(reason))
		s.send(partner, protocol.ServerMessage{
			Type:   protocol.MessageTypePartnerLeft,
			Reason: reason,
		})
	case presence.StatusWaiting:
		if i := slices.Index(s.queue, userID); i >= 0 {
			s.queue = slices.Delete(s.queue, i, i+1)
		}
		s.presence.SetIdle(userID)
		s.mu.Unlock()
	default:
		s.mu.Unlock()
	}
}

// Next is Leave followed immediately by a fresh match request. The departure
// notification to the old partner is sent before the user re-enters the
// queue, so the old partner can never observe signaling from a user that has
// already moved on to a new pairing.
func (s *Service) Next(userID string) (Outcome, error) {
	s.leave(userID, protocol.LeaveReasonNext)
	return s.RequestMatch(userID)
}

// Disconnect handles a transport-level close for connID. The user id is
// re-derived from the connection registry; if nothing maps to connID the
// event refers to an already cleaned-up or replaced connection and is a
// no-op.
func (s *Service) Disconnect(connID string) {
	userID := s.registry.UserForConn(connID)
	if userID == "" {
		return
	}
	s.leave(userID, protocol.LeaveReasonDisconnect)
	if !s.registry.Remove(userID, connID) {
		return
	}
	s.presence.Clear(userID)
	s.metrics.Inc(metrics.EventDisconnect)
	s.log.Info("user disconnected", "user_id", userID, "conn_id", connID)
}

// Relay forwards an opaque payload from senderID to its current partner.
//
// One mechanism for every relayed kind (offer, answer, ice_candidate, chat);
// the payload is never inspected. A sender without a partner, or a partner
// without a live connection, drops the message silently: both are expected
// races in a disconnect-heavy environment, not errors.
func (s *Service) Relay(kind protocol.MessageType, senderID string, payload json.RawMessage) {
	partner := s.presence.PartnerOf(senderID)
	if partner == "" {
		s.metrics.Inc(metrics.EventRelayDropNoPartner)
		return
	}
	conn := s.registry.Lookup(partner)
	if conn == nil {
		s.metrics.Inc(metrics.EventRelayDropNoConn)
		return
	}
	if err := conn.Send(protocol.ServerMessage{
		Type:    kind,
		From:    senderID,
		Payload: payload,
	}); err != nil {
		s.log.Debug("relay send failed", "from", senderID, "to", partner, "err", err)
		return
	}
	s.metrics.Inc(metrics.EventRelayForwarded)
}

func (s *Service) notifyMatched(initiator, responder string) {
	initiatorName := s.username(initiator)
	responderName := s.username(responder)

	s.send(initiator, protocol.ServerMessage{
		Type:            protocol.MessageTypeMatched,
		PartnerID:       responder,
		PartnerUsername: responderName,
		Initiator:       true,
	})
	s.send(responder, protocol.ServerMessage{
		Type:            protocol.MessageTypeMatched,
		PartnerID:       initiator,
		PartnerUsername: initiatorName,
		Initiator:       false,
	})
}

// username resolves the public username for matched enrichment. Best-effort:
// a directory failure degrades to an empty username rather than delaying or
// failing the pairing.
func (s *Service) username(userID string) string {
	if s.directory == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.lookupTimeout)
	defer cancel()
	profile, err := s.directory.LookupPublicProfile(ctx, userID)
	if err != nil {
		s.log.Warn("profile lookup failed", "user_id", userID, "err", err)
		return ""
	}
	return profile.Username
}

// send delivers a notification to userID's live connection, dropping it
// silently if the connection no longer exists.
func (s *Service) send(userID string, msg protocol.ServerMessage) {
	conn := s.registry.Lookup(userID)
	if conn == nil {
		s.metrics.Inc(metrics.EventNotifyDropNoConn)
		return
	}
	if err := conn.Send(msg); err != nil {
		s.log.Debug("notification send failed", "user_id", userID, "type", string(msg.Type), "err", err)
	}
}
