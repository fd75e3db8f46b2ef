// Copyright 2024-2026 Aiku AI

package subscription

import (
	"errors"
	"testing"
)

func TestValidNickname(t *testing.T) {
	t.Parallel()
	tests := []struct {
		nick string
		want bool
	}{
		{"bob", true},
		{"alice_99", true},
		{"a-b-c", true},
		{"ABCDEFGHIJ", true},
		{"ab", false},
		{"ABCDEFGHIJK", false},
		{"bob smith", false},
		{"bob!", false},
		{"j1@example", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidNickname(tt.nick); got != tt.want {
			t.Errorf("ValidNickname(%q): got %v, want %v", tt.nick, got, tt.want)
		}
	}
}

func TestSetNicknameKeepsPreviousOnReject(t *testing.T) {
	t.Parallel()
	sub := NewSubscriber("j1")
	if err := sub.SetNickname("x"); !errors.Is(err, ErrInvalidNickname) {
		t.Errorf("SetNickname: got %v, want ErrInvalidNickname", err)
	}
	if sub.Nickname != "j1" {
		t.Errorf("Nickname: got %q, want %q", sub.Nickname, "j1")
	}
}

func TestRespondReactivation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		triggers    []string
		text        string
		wantDeliver bool
	}{
		{"unrelated", nil, "hello everyone", false},
		{"nickname whole word", nil, "where is alice today", true},
		{"nickname with punctuation", nil, "alice: ping", true},
		{"nickname inside word", nil, "malice aforethought", false},
		{"nickname prefix", nil, "alicea", false},
		{"trigger", []string{"deploy"}, "time to deploy now", true},
		{"trigger inside word", []string{"deploy"}, "redeployment", false},
		{"nickname hyphenated", nil, "alice-bot is down", false},
		{"regex chars in trigger", []string{"c++"}, "anyone know c++?", true},
		{"regex chars inside word", []string{"c++"}, "objc++ again", false},
		{"dotted trigger", []string{"v1.2"}, "release v1.2 shipped", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sub := NewSubscriber("a@example.com")
			sub.Nickname = "alice"
			sub.Triggers = tt.triggers
			sub.Close()

			deliver, changed := sub.Respond(tt.text)
			if deliver != tt.wantDeliver {
				t.Errorf("deliver: got %v, want %v", deliver, tt.wantDeliver)
			}
			if changed != tt.wantDeliver || sub.Active != tt.wantDeliver {
				t.Errorf("reactivation: changed=%v active=%v, want %v", changed, sub.Active, tt.wantDeliver)
			}
		})
	}
}

func TestRespondNicknameEdgeCharacters(t *testing.T) {
	t.Parallel()
	tests := []struct {
		nick        string
		text        string
		wantDeliver bool
	}{
		{"bob-", "hey bob- are you there", true},
		{"bob-", "bob-", true},
		{"bob-", "hey bob are you there", false},
		{"-bob", "ping -bob", true},
		{"_bob_", "_bob_: hi", true},
		{"_bob_", "x_bob_", false},
	}
	for _, tt := range tests {
		sub := NewSubscriber("b@example.com")
		sub.Nickname = tt.nick
		sub.Close()
		if deliver, _ := sub.Respond(tt.text); deliver != tt.wantDeliver {
			t.Errorf("nick %q, Respond(%q): got %v, want %v", tt.nick, tt.text, deliver, tt.wantDeliver)
		}
	}
}

func TestRespondActiveAlwaysDelivers(t *testing.T) {
	t.Parallel()
	sub := NewSubscriber("a@example.com")
	deliver, changed := sub.Respond("anything at all")
	if !deliver || changed {
		t.Errorf("active subscriber: deliver=%v changed=%v", deliver, changed)
	}
}

func TestSubscriberString(t *testing.T) {
	t.Parallel()
	sub := NewSubscriber("a@example.com")
	sub.Nickname = "alice"
	if got := sub.String(); got != "alice" {
		t.Errorf("active: got %q, want %q", got, "alice")
	}
	sub.Close()
	if got := sub.String(); got != "(alice)" {
		t.Errorf("inactive: got %q, want %q", got, "(alice)")
	}
}

func FuzzValidNickname(f *testing.F) {
	f.Add("bob")
	f.Add("")
	f.Add("a-very-long-nickname")
	f.Add(string([]byte{0x00, 0x41, 0x42}))

	f.Fuzz(func(t *testing.T, nick string) {
		sub := NewSubscriber("a@example.com")
		err := sub.SetNickname(nick)
		if ValidNickname(nick) != (err == nil) {
			t.Errorf("SetNickname(%q) err=%v disagrees with ValidNickname", nick, err)
		}
		if err != nil && sub.Nickname != "a@example.com" {
			t.Errorf("rejected nickname %q replaced previous one", nick)
		}
		if err == nil && (len(nick) < 3 || len(nick) > 10) {
			t.Errorf("accepted nickname %q has length %d", nick, len(nick))
		}
	})
}
