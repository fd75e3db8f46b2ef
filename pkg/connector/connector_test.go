// Copyright 2024-2026 Aiku AI

package connector

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aiku/irc-xmpp-bridge/pkg/bridge"
	"github.com/aiku/irc-xmpp-bridge/pkg/subscription"
	"github.com/rs/zerolog"
)

func testConfig(t *testing.T, subscriptions string) *Config {
	t.Helper()
	cfg, err := ParseConfig([]byte(minimalConfig))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	cfg.XMPP.SubscriptionsFile = subscriptions
	return cfg
}

func TestNewBridgeLoadsSubscriptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subscriptions.yaml")
	data := "alice@example.com:\n  nickname: alice\n  triggers: []\n  active: false\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	b, err := NewBridge(testConfig(t, path), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewBridge: %v", err)
	}
	if b.Store.Len() != 1 {
		t.Errorf("Len: got %d, want 1", b.Store.Len())
	}
	users, err := bridge.Call(b.Router, bridge.SourceXMPP, func(ep bridge.Endpoint) []string {
		return ep.UserList()
	})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(users) != 1 || users[0] != "(alice)" {
		t.Errorf("UserList: got %v", users)
	}
	if b.IRC.Connected() || b.XMPP.Connected() {
		t.Error("endpoints should not be connected before Run")
	}
}

func TestNewBridgeUnparsableSubscriptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subscriptions.yaml")
	if err := os.WriteFile(path, []byte("- just\n- a list\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewBridge(testConfig(t, path), zerolog.Nop()); err == nil {
		t.Error("expected error for unparsable subscriptions file")
	}
}

func TestBridgeRunSavesSubscriptionsOnShutdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subscriptions.yaml")
	cfg := testConfig(t, path)
	cfg.IRC.Server = "127.0.0.1"
	cfg.IRC.Port = 1
	cfg.XMPP.Address = "127.0.0.1:1"
	b, err := NewBridge(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewBridge: %v", err)
	}
	sub := subscription.NewSubscriber("alice@example.com")
	sub.Nickname = "alice"
	if err = b.Store.Put(sub.Identity, sub); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err = os.Remove(path); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()
	select {
	case err = <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	reloaded, err := subscription.Open(path, true, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got, ok := reloaded.Get("alice@example.com"); !ok || got.Nickname != "alice" {
		t.Errorf("Get after shutdown: got %+v, %v", got, ok)
	}
}
