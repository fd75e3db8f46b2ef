// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package connector

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/aiku/irc-xmpp-bridge/pkg/bridge"
	"github.com/aiku/irc-xmpp-bridge/pkg/subscription"
	"github.com/rs/zerolog"
)

const (
	testChannel = "#bridge"
	testBotJID  = "bridge@example.com"
)

// sentLine is one outbound message captured by a fake transport.
type sentLine struct {
	Target string
	Text   string
	Action bool
}

// fakeIRC records everything the IRC endpoint sends.
type fakeIRC struct {
	mu        sync.Mutex
	lines     []sentLine
	joined    []string
	connected bool
}

func newFakeIRC() *fakeIRC {
	return &fakeIRC{connected: true}
}

func (f *fakeIRC) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeIRC) SetConnected(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = v
}

func (f *fakeIRC) Privmsg(target, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, sentLine{Target: target, Text: text})
	return nil
}

func (f *fakeIRC) Action(target, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, sentLine{Target: target, Text: text, Action: true})
	return nil
}

func (f *fakeIRC) Join(channel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joined = append(f.joined, channel)
	return nil
}

func (f *fakeIRC) Lines() []sentLine {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]sentLine, len(f.lines))
	copy(cp, f.lines)
	return cp
}

func (f *fakeIRC) Texts() []string {
	var out []string
	for _, l := range f.Lines() {
		out = append(out, l.Text)
	}
	return out
}

func (f *fakeIRC) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = nil
}

// fakeXMPP records chats and subscription approvals.
type fakeXMPP struct {
	mu        sync.Mutex
	chats     []sentLine
	approved  []string
	connected bool
}

func newFakeXMPP() *fakeXMPP {
	return &fakeXMPP{connected: true}
}

func (f *fakeXMPP) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeXMPP) SetConnected(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = v
}

func (f *fakeXMPP) SendChat(to, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats = append(f.chats, sentLine{Target: to, Text: text})
	return nil
}

func (f *fakeXMPP) ApproveSubscription(jid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.approved = append(f.approved, jid)
	return nil
}

// To returns the texts sent to jid, in order.
func (f *fakeXMPP) To(jid string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.chats {
		if c.Target == jid {
			out = append(out, c.Text)
		}
	}
	return out
}

func (f *fakeXMPP) Approved() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.approved...)
}

func (f *fakeXMPP) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats = nil
}

// testBridge is a fully wired bridge with fake transports.
type testBridge struct {
	router   *bridge.Router
	store    *subscription.Store
	irc      *IRCEndpoint
	xmpp     *XMPPEndpoint
	ircWire  *fakeIRC
	xmppWire *fakeXMPP
}

func newTestBridge(t *testing.T) *testBridge {
	t.Helper()
	log := zerolog.Nop()
	store := subscription.New(filepath.Join(t.TempDir(), "subscriptions.yaml"), log)
	tb := &testBridge{
		router:   bridge.NewRouter(log),
		store:    store,
		ircWire:  newFakeIRC(),
		xmppWire: newFakeXMPP(),
	}
	tb.irc = NewIRCEndpoint(IRCConfig{Nick: "bridgebot", Channel: testChannel}, tb.router, log)
	tb.xmpp = NewXMPPEndpoint(XMPPConfig{JID: testBotJID}, tb.router, store, log)
	tb.irc.Attach(tb.ircWire)
	tb.xmpp.Attach(tb.xmppWire)
	tb.router.Register(bridge.SourceIRC, tb.irc)
	tb.router.Register(bridge.SourceXMPP, tb.xmpp)
	return tb
}

// populate completes the initial NAMES listing with the given nicks.
func (tb *testBridge) populate(t *testing.T, nicks ...string) {
	t.Helper()
	if err := tb.irc.HandleEvent(Event{Kind: EventNames, Target: testChannel, Names: nicks}); err != nil {
		t.Fatalf("names: %v", err)
	}
	if err := tb.irc.HandleEvent(Event{Kind: EventEndOfNames, Target: testChannel}); err != nil {
		t.Fatalf("end of names: %v", err)
	}
}

// addSubscriber puts a subscriber straight into the store.
func (tb *testBridge) addSubscriber(t *testing.T, jid, nick string, active bool) {
	t.Helper()
	sub := subscription.NewSubscriber(jid)
	sub.Nickname = nick
	sub.Active = active
	if err := tb.store.Put(jid, sub); err != nil {
		t.Fatalf("Put(%q): %v", jid, err)
	}
}

// chat simulates a private XMPP message from jid.
func (tb *testBridge) chat(t *testing.T, jid, text string) error {
	t.Helper()
	return tb.xmpp.HandleEvent(Event{Kind: EventPrivateMessage, Nick: jid + "/phone", Text: text})
}
