package config

import (
	"testing"
	"time"
)

func TestLoadFillsDefaultsAndOverlaysCaller(t *testing.T) {
	cfg, err := Load([]byte(`
account:
  jid: alice@example.com
transport:
  url: wss://example.com/ws
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Account.JID != "alice@example.com" {
		t.Fatalf("Account.JID = %q", cfg.Account.JID)
	}
	if cfg.Transport.URL != "wss://example.com/ws" {
		t.Fatalf("Transport.URL = %q", cfg.Transport.URL)
	}
	if cfg.Transport.Kind == "" {
		t.Fatal("expected Transport.Kind to come from the embedded defaults")
	}
}

func TestLoadRequiresAccountJID(t *testing.T) {
	if _, err := Load([]byte("transport:\n  kind: websocket\n")); err == nil {
		t.Fatal("expected error for missing account.jid")
	}
}

func TestTimeoutAccessorsFallBackOnMalformedDuration(t *testing.T) {
	cfg, err := Load([]byte("account:\n  jid: alice@example.com\ntimeouts:\n  request: not-a-duration\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got, want := cfg.RequestTimeout(), 15*time.Second; got != want {
		t.Fatalf("RequestTimeout() = %v, want fallback %v", got, want)
	}
}

func TestTimeoutAccessorsParseValidDuration(t *testing.T) {
	cfg, err := Load([]byte("account:\n  jid: alice@example.com\ntimeouts:\n  ping: 45s\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.PingInterval(); got.Seconds() != 45 {
		t.Fatalf("PingInterval() = %v, want 45s", got)
	}
}
