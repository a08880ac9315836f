// Package turnrest issues coturn-compatible ephemeral TURN credentials
// (draft-uberti-behave-turn-rest):
//
//	username   = <unix_expiry>:<prefix>:<client_id>
//	credential = base64(hmac_sha1(shared_secret, username))
//
// Clients fetch these alongside the ICE server list so the relayed TURN path
// works without a long-lived credential ever reaching the browser.
package turnrest

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Credentials struct {
	Username   string
	Credential string
	ExpiryUnix int64
}

type Generator struct {
	secret []byte
	ttl    int64
	prefix string
	now    func() time.Time
}

type GeneratorConfig struct {
	SharedSecret   string
	TTLSeconds     int64
	UsernamePrefix string

	// Now is the clock used to compute expiry. nil means time.Now.
	Now func() time.Time
}

func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	if cfg.SharedSecret == "" {
		return nil, errors.New("shared secret is required")
	}
	if cfg.TTLSeconds <= 0 {
		return nil, errors.New("ttl must be > 0")
	}
	if cfg.UsernamePrefix == "" || strings.Contains(cfg.UsernamePrefix, ":") {
		return nil, errors.New("username prefix must be non-empty and contain no ':'")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Generator{
		secret: []byte(cfg.SharedSecret),
		ttl:    cfg.TTLSeconds,
		prefix: cfg.UsernamePrefix,
		now:    now,
	}, nil
}

// Generate issues credentials tied to clientID (typically the signaling
// connection id). The id becomes part of the TURN username, which makes
// coturn logs attributable to a signaling session.
func (g *Generator) Generate(clientID string) (Credentials, error) {
	if clientID == "" || strings.Contains(clientID, ":") {
		return Credentials{}, errors.New("client id must be non-empty and contain no ':'")
	}
	expiry := g.now().UTC().Unix() + g.ttl
	username := fmt.Sprintf("%d:%s:%s", expiry, g.prefix, clientID)
	return Credentials{
		Username:   username,
		Credential: sign(g.secret, username),
		ExpiryUnix: expiry,
	}, nil
}

// GenerateRandom issues credentials with a random client id, for callers
// that have no session identity yet.
func (g *Generator) GenerateRandom() (Credentials, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return Credentials{}, err
	}
	return g.Generate(hex.EncodeToString(b[:]))
}

func sign(secret []byte, username string) string {
	mac := hmac.New(sha1.New, secret)
	_, _ = mac.Write([]byte(username))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
