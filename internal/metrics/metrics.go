package metrics

import "sync"

// Event counter names.
const (
	EventPairCreated        = "pair_created"
	EventPairTornDown       = "pair_torn_down"
	EventQueueEnqueued      = "queue_enqueued"
	EventQueueCancelled     = "queue_cancelled"
	EventRelayForwarded     = "relay_forwarded"
	EventRelayDropNoPartner = "relay_drop_no_partner"
	EventRelayDropNoConn    = "relay_drop_no_conn"
	EventNotifyDropNoConn   = "notify_drop_no_conn"
	EventRegisterReplaced   = "register_replaced"
	EventAlreadyPaired      = "already_paired_rejected"
	EventDisconnect         = "disconnect"
	EventRateLimited        = "rate_limited"
	EventBadMessage         = "bad_message"
)

// Metrics is a minimal, concurrency-safe counter registry.
//
// It keeps matchmaking and relay bookkeeping testable without pulling in a
// metrics backend; counters are exported in Prometheus' text format by
// PrometheusHandler.
type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

func New() *Metrics {
	return &Metrics{m: make(map[string]uint64)}
}

func (m *Metrics) Inc(name string) {
	m.mu.Lock()
	m.m[name]++
	m.mu.Unlock()
}

func (m *Metrics) Add(name string, n uint64) {
	m.mu.Lock()
	m.m[name] += n
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

// Snapshot returns a copy of all counters.
func (m *Metrics) Snapshot() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.m))
	for k, v := range m.m {
		out[k] = v
	}
	return out
}
