package httpserver

import (
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/pairwave/matchrelay/internal/config"
)

func startServer(t *testing.T, cfg config.Config) (*Server, string) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := New(cfg, logger, BuildInfo{Commit: "abc123", BuildTime: "2026-01-01T00:00:00Z"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })

	// Serve flips readiness asynchronously.
	deadline := time.Now().Add(2 * time.Second)
	for !srv.ready.Load() {
		if time.Now().After(deadline) {
			t.Fatalf("server never became ready")
		}
		time.Sleep(5 * time.Millisecond)
	}

	return srv, "http://" + ln.Addr().String()
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp
}

func TestHealthAndVersion(t *testing.T) {
	_, base := startServer(t, config.Config{})

	var health map[string]any
	resp := getJSON(t, base+"/healthz", &health)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status=%d", resp.StatusCode)
	}
	if health["ok"] != true {
		t.Fatalf("healthz body=%v", health)
	}

	var ready map[string]any
	resp = getJSON(t, base+"/readyz", &ready)
	if resp.StatusCode != http.StatusOK || ready["ready"] != true {
		t.Fatalf("readyz status=%d body=%v", resp.StatusCode, ready)
	}

	var build BuildInfo
	resp = getJSON(t, base+"/version", &build)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("version status=%d", resp.StatusCode)
	}
	if build.Commit != "abc123" {
		t.Fatalf("commit=%q", build.Commit)
	}
}

func TestReadyzAfterShutdown(t *testing.T) {
	srv, base := startServer(t, config.Config{})
	srv.ready.Store(false)

	resp := getJSON(t, base+"/readyz", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d, want 503", resp.StatusCode)
	}
}

func TestRequestIDEchoedAndGenerated(t *testing.T) {
	_, base := startServer(t, config.Config{})

	req, _ := http.NewRequest(http.MethodGet, base+"/healthz", nil)
	req.Header.Set("X-Request-ID", "req-42")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); got != "req-42" {
		t.Fatalf("X-Request-ID=%q, want req-42", got)
	}

	resp = getJSON(t, base+"/healthz", nil)
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("expected a generated request id")
	}
}

func TestICEWithoutTURNREST(t *testing.T) {
	cfg := config.Config{
		ICEServers: []webrtc.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}},
	}
	_, base := startServer(t, cfg)

	var body struct {
		ICEServers []struct {
			URLs []string `json:"urls"`
		} `json:"iceServers"`
		TTLSeconds *int64 `json:"ttlSeconds"`
	}
	resp := getJSON(t, base+"/webrtc/ice", &body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ice status=%d", resp.StatusCode)
	}
	if len(body.ICEServers) != 1 || len(body.ICEServers[0].URLs) != 1 {
		t.Fatalf("unexpected ice servers: %+v", body.ICEServers)
	}
	if !strings.HasPrefix(body.ICEServers[0].URLs[0], "stun:") {
		t.Fatalf("list should be STUN only: %+v", body.ICEServers)
	}
	if body.TTLSeconds != nil {
		t.Fatalf("ttlSeconds should be absent without TURN REST")
	}
}

func TestICEWithTURNREST(t *testing.T) {
	cfg := config.Config{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{"stun:stun.example.com:3478"}},
			{URLs: []string{"turn:turn.example.com:3478?transport=udp"}},
		},
		TURNREST: config.TurnRESTConfig{
			SharedSecret:   "s3cret",
			TTLSeconds:     600,
			UsernamePrefix: "matchrelay",
		},
	}
	_, base := startServer(t, cfg)

	var body struct {
		ICEServers []struct {
			URLs       []string `json:"urls"`
			Username   string   `json:"username"`
			Credential string   `json:"credential"`
		} `json:"iceServers"`
		TTLSeconds int64 `json:"ttlSeconds"`
	}
	resp := getJSON(t, base+"/webrtc/ice", &body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ice status=%d", resp.StatusCode)
	}
	if body.TTLSeconds <= 0 || body.TTLSeconds > 600 {
		t.Fatalf("ttlSeconds=%d, want (0, 600]", body.TTLSeconds)
	}

	var sawTURN, sawSTUN bool
	for _, s := range body.ICEServers {
		for _, u := range s.URLs {
			switch {
			case strings.HasPrefix(u, "turn:"):
				sawTURN = true
				if s.Username == "" || s.Credential == "" {
					t.Fatalf("TURN entry missing ephemeral credentials: %+v", s)
				}
				if !strings.Contains(s.Username, ":matchrelay:") {
					t.Fatalf("unexpected TURN REST username %q", s.Username)
				}
			case strings.HasPrefix(u, "stun:"):
				sawSTUN = true
				if s.Username != "" || s.Credential != "" {
					t.Fatalf("STUN entry must not carry credentials: %+v", s)
				}
			}
		}
	}
	if !sawTURN || !sawSTUN {
		t.Fatalf("expected both STUN and TURN entries: %+v", body.ICEServers)
	}

	// Each request mints fresh credentials.
	var second struct {
		ICEServers []struct {
			Username string `json:"username"`
		} `json:"iceServers"`
	}
	getJSON(t, base+"/webrtc/ice", &second)
	if len(second.ICEServers) == len(body.ICEServers) {
		first, again := body.ICEServers[len(body.ICEServers)-1].Username, second.ICEServers[len(second.ICEServers)-1].Username
		if first != "" && first == again {
			t.Fatalf("credentials were reused across requests")
		}
	}
}

func TestRecoverMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := New(config.Config{}, logger, BuildInfo{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// Routes must be in place before Serve; the mux is not safe to mutate
	// once the server accepts traffic.
	srv.Mux().HandleFunc("GET /boom", func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })

	resp := getJSON(t, "http://"+ln.Addr().String()+"/boom", nil)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status=%d, want 500", resp.StatusCode)
	}
}
