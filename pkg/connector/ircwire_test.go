// Copyright 2024-2026 Aiku AI

package connector

import (
	"slices"
	"testing"

	"github.com/rs/zerolog"
	"gopkg.in/irc.v4"
)

func newTestIRCConn() *IRCConn {
	return NewIRCConn(IRCConfig{Nick: "bridgebot", Channel: testChannel}, nil, zerolog.Nop())
}

func ircMsg(from, command string, params ...string) *irc.Message {
	m := &irc.Message{Command: command, Params: params}
	if from != "" {
		m.Prefix = &irc.Prefix{Name: from, User: from, Host: "example.net"}
	}
	return m
}

func TestTranslate(t *testing.T) {
	t.Parallel()
	c := newTestIRCConn()
	tests := []struct {
		name string
		msg  *irc.Message
		want Event
	}{
		{
			name: "welcome",
			msg:  ircMsg("irc.example.net", "001", "bridgebot", "Welcome"),
			want: Event{Kind: EventConnect},
		},
		{
			name: "names fragment",
			msg:  ircMsg("irc.example.net", "353", "bridgebot", "=", testChannel, "@alice +bob carol"),
			want: Event{Kind: EventNames, Target: testChannel, Names: []string{"@alice", "+bob", "carol"}},
		},
		{
			name: "end of names",
			msg:  ircMsg("irc.example.net", "366", "bridgebot", testChannel, "End of /NAMES list."),
			want: Event{Kind: EventEndOfNames, Target: testChannel},
		},
		{
			name: "join",
			msg:  ircMsg("dave", "JOIN", testChannel),
			want: Event{Kind: EventJoin, Nick: "dave", Target: testChannel},
		},
		{
			name: "part with reason",
			msg:  ircMsg("dave", "PART", testChannel, "lunch"),
			want: Event{Kind: EventPart, Nick: "dave", Target: testChannel, Reason: "lunch"},
		},
		{
			name: "part without reason",
			msg:  ircMsg("dave", "PART", testChannel),
			want: Event{Kind: EventPart, Nick: "dave", Target: testChannel},
		},
		{
			name: "quit",
			msg:  ircMsg("dave", "QUIT", "Ping timeout"),
			want: Event{Kind: EventQuit, Nick: "dave", Reason: "Ping timeout"},
		},
		{
			name: "nick change",
			msg:  ircMsg("dave", "NICK", "david"),
			want: Event{Kind: EventNickChange, Nick: "dave", NewNick: "david"},
		},
		{
			name: "channel message",
			msg:  ircMsg("dave", "PRIVMSG", testChannel, "hello all"),
			want: Event{Kind: EventChannelMessage, Nick: "dave", Target: testChannel, Text: "hello all"},
		},
		{
			name: "private message",
			msg:  ircMsg("dave", "PRIVMSG", "bridgebot", "psst"),
			want: Event{Kind: EventPrivateMessage, Nick: "dave", Target: "bridgebot", Text: "psst"},
		},
		{
			name: "ctcp action",
			msg:  ircMsg("dave", "PRIVMSG", testChannel, "\x01ACTION waves\x01"),
			want: Event{Kind: EventChannelMessage, Nick: "dave", Target: testChannel, Text: "/me waves"},
		},
	}
	for _, tt := range tests {
		got, ok := c.translate("bridgebot", tt.msg)
		if !ok {
			t.Errorf("%s: not translated", tt.name)
			continue
		}
		if got.Kind != tt.want.Kind || got.Nick != tt.want.Nick || got.Target != tt.want.Target ||
			got.Text != tt.want.Text || got.NewNick != tt.want.NewNick || got.Reason != tt.want.Reason {
			t.Errorf("%s: got %+v, want %+v", tt.name, got, tt.want)
		}
		if !slices.Equal(got.Names, tt.want.Names) {
			t.Errorf("%s: names got %v, want %v", tt.name, got.Names, tt.want.Names)
		}
	}
}

func TestTranslateDropped(t *testing.T) {
	t.Parallel()
	c := newTestIRCConn()
	tests := []struct {
		name string
		msg  *irc.Message
	}{
		{"own join", ircMsg("bridgebot", "JOIN", testChannel)},
		{"own message", ircMsg("BridgeBot", "PRIVMSG", testChannel, "echo")},
		{"ctcp version", ircMsg("dave", "PRIVMSG", "bridgebot", "\x01VERSION\x01")},
		{"notice", ircMsg("dave", "NOTICE", testChannel, "hi")},
		{"short names reply", ircMsg("irc.example.net", "353", "bridgebot")},
		{"privmsg without text", ircMsg("dave", "PRIVMSG", testChannel)},
	}
	for _, tt := range tests {
		if evt, ok := c.translate("bridgebot", tt.msg); ok {
			t.Errorf("%s: expected drop, got %+v", tt.name, evt)
		}
	}
}

func TestIsChannel(t *testing.T) {
	t.Parallel()
	for _, target := range []string{"#bridge", "&local", "+modeless", "!safe"} {
		if !isChannel(target) {
			t.Errorf("isChannel(%q): got false", target)
		}
	}
	for _, target := range []string{"", "bridgebot", "alice"} {
		if isChannel(target) {
			t.Errorf("isChannel(%q): got true", target)
		}
	}
}

func TestIRCConnNotConnected(t *testing.T) {
	t.Parallel()
	c := newTestIRCConn()
	if c.Connected() {
		t.Error("new connection should not report connected")
	}
	if err := c.Privmsg(testChannel, "hi"); err != ErrIRCNotConnected {
		t.Errorf("Privmsg: got %v, want ErrIRCNotConnected", err)
	}
	if err := c.Join(testChannel); err != ErrIRCNotConnected {
		t.Errorf("Join: got %v, want ErrIRCNotConnected", err)
	}
}
