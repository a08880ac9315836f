package turnrest

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"strings"
	"testing"
	"time"
)

func TestGenerate_DeterministicWithFixedTime(t *testing.T) {
	g, err := NewGenerator(GeneratorConfig{
		SharedSecret:   "shared-secret",
		TTLSeconds:     3600,
		UsernamePrefix: "matchrelay",
		Now:            func() time.Time { return time.Unix(1_700_000_000, 0).UTC() },
	})
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	creds, err := g.Generate("conn123")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	wantExpiry := int64(1_700_003_600)
	if creds.ExpiryUnix != wantExpiry {
		t.Fatalf("ExpiryUnix: got %d, want %d", creds.ExpiryUnix, wantExpiry)
	}
	wantUsername := "1700003600:matchrelay:conn123"
	if creds.Username != wantUsername {
		t.Fatalf("Username: got %q, want %q", creds.Username, wantUsername)
	}

	wantCred := expectedCredential(t, []byte("shared-secret"), wantUsername)
	if creds.Credential != wantCred {
		t.Fatalf("Credential: got %q, want %q", creds.Credential, wantCred)
	}
}

func TestGenerate_TTLBehavior(t *testing.T) {
	now := time.Unix(42, 0).UTC()
	g, err := NewGenerator(GeneratorConfig{
		SharedSecret:   "secret",
		TTLSeconds:     10,
		UsernamePrefix: "matchrelay",
		Now:            func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	creds, err := g.Generate("abc")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if creds.ExpiryUnix != now.Unix()+10 {
		t.Fatalf("ExpiryUnix: got %d, want %d", creds.ExpiryUnix, now.Unix()+10)
	}
}

func TestGenerate_CredentialBase64AndHMACSHA1(t *testing.T) {
	g, err := NewGenerator(GeneratorConfig{
		SharedSecret:   "secret",
		TTLSeconds:     1,
		UsernamePrefix: "pfx",
		Now:            func() time.Time { return time.Unix(0, 0).UTC() },
	})
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	creds, err := g.Generate("cid")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	decoded, err := base64.StdEncoding.DecodeString(creds.Credential)
	if err != nil {
		t.Fatalf("DecodeString: %v", err)
	}
	if len(decoded) != sha1.Size {
		t.Fatalf("decoded length: got %d, want %d", len(decoded), sha1.Size)
	}

	mac := hmac.New(sha1.New, []byte("secret"))
	_, _ = mac.Write([]byte(creds.Username))
	want := mac.Sum(nil)
	if string(decoded) != string(want) {
		t.Fatalf("decoded HMAC mismatch")
	}
}

func TestNewGenerator_Validation(t *testing.T) {
	cases := []struct {
		name string
		cfg  GeneratorConfig
	}{
		{"empty secret", GeneratorConfig{TTLSeconds: 1, UsernamePrefix: "p"}},
		{"zero ttl", GeneratorConfig{SharedSecret: "s", UsernamePrefix: "p"}},
		{"negative ttl", GeneratorConfig{SharedSecret: "s", TTLSeconds: -1, UsernamePrefix: "p"}},
		{"empty prefix", GeneratorConfig{SharedSecret: "s", TTLSeconds: 1}},
		{"colon in prefix", GeneratorConfig{SharedSecret: "s", TTLSeconds: 1, UsernamePrefix: "a:b"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewGenerator(tc.cfg); err == nil {
				t.Fatalf("NewGenerator: want error, got nil")
			}
		})
	}
}

func TestGenerate_RejectsBadClientID(t *testing.T) {
	g, err := NewGenerator(GeneratorConfig{
		SharedSecret:   "secret",
		TTLSeconds:     1,
		UsernamePrefix: "pfx",
	})
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	if _, err := g.Generate(""); err == nil {
		t.Fatalf("Generate(empty): want error, got nil")
	}
	if _, err := g.Generate("a:b"); err == nil {
		t.Fatalf("Generate(colon): want error, got nil")
	}
}

func TestGenerateRandom(t *testing.T) {
	g, err := NewGenerator(GeneratorConfig{
		SharedSecret:   "secret",
		TTLSeconds:     60,
		UsernamePrefix: "pfx",
	})
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	a, err := g.GenerateRandom()
	if err != nil {
		t.Fatalf("GenerateRandom: %v", err)
	}
	b, err := g.GenerateRandom()
	if err != nil {
		t.Fatalf("GenerateRandom: %v", err)
	}
	if a.Username == b.Username {
		t.Fatalf("expected distinct usernames, both %q", a.Username)
	}
	for _, c := range []Credentials{a, b} {
		parts := strings.Split(c.Username, ":")
		if len(parts) != 3 || parts[1] != "pfx" {
			t.Fatalf("unexpected username shape %q", c.Username)
		}
	}
}

func expectedCredential(t *testing.T, sharedSecret []byte, username string) string {
	t.Helper()
	mac := hmac.New(sha1.New, sharedSecret)
	_, _ = mac.Write([]byte(username))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
