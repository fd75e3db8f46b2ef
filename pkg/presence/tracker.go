// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package presence tracks who is currently joined to the bridged IRC channel.
//
// The tracker starts every connection in [AwaitingList]. Membership list
// fragments (RPL_NAMREPLY) are collected until the end-of-list marker
// arrives, after which the tracker is [Populated] and follows joins, parts,
// quits and nick changes, announcing them through a [Notifier].
package presence

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"go.mau.fi/util/exsync"
)

type State int

const (
	AwaitingList State = iota
	Populated
)

func (s State) String() string {
	switch s {
	case AwaitingList:
		return "awaiting-list"
	case Populated:
		return "populated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Notifier receives membership notices meant for the other side of the bridge.
type Notifier interface {
	Notify(text string)
}

// NotifierFunc adapts a plain function to [Notifier].
type NotifierFunc func(text string)

func (f NotifierFunc) Notify(text string) { f(text) }

// Tracker is the membership set of one channel.
type Tracker struct {
	mu      sync.Mutex
	state   State
	pending []string
	members *exsync.Set[string]

	notifier Notifier
	log      zerolog.Logger
}

func NewTracker(notifier Notifier, log zerolog.Logger) *Tracker {
	return &Tracker{
		state:    AwaitingList,
		members:  exsync.NewSet[string](),
		notifier: notifier,
		log:      log.With().Str("component", "presence").Logger(),
	}
}

// Normalize strips a single leading channel-status decoration (@ or +).
func Normalize(nick string) string {
	if strings.HasPrefix(nick, "@") || strings.HasPrefix(nick, "+") {
		return nick[1:]
	}
	return nick
}

// Reset forgets all membership and waits for a fresh list. Called on connect.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = AwaitingList
	t.pending = nil
	t.members = exsync.NewSet[string]()
}

func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// AddNames collects one membership list fragment. Fragments arriving after
// the list was closed are dropped; it reports whether the fragment was used.
func (t *Tracker) AddNames(raw []string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != AwaitingList {
		t.log.Debug().Strs("names", raw).Msg("Ignoring late names fragment")
		return false
	}
	t.pending = append(t.pending, lo.Map(raw, func(nick string, _ int) string {
		return Normalize(nick)
	})...)
	return true
}

// EndNames closes the membership list.
func (t *Tracker) EndNames() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != AwaitingList {
		return
	}
	for _, nick := range lo.Uniq(t.pending) {
		if nick != "" {
			t.members.Add(nick)
		}
	}
	t.pending = nil
	t.state = Populated
	t.log.Debug().Int("count", t.members.Size()).Msg("Names list complete")
}

// Join adds nick, announcing it only when the list is populated and the
// nick was not already present.
func (t *Tracker) Join(nick string) bool {
	t.mu.Lock()
	added := t.members.Add(nick)
	announce := added && t.state == Populated
	t.mu.Unlock()
	if announce {
		t.notify(fmt.Sprintf("%s has joined the IRC channel.", nick))
	}
	return added
}

// Part removes nick from the members and from any list still being
// collected, announcing the departure only if nick was tracked.
func (t *Tracker) Part(nick, reason string) bool {
	t.mu.Lock()
	removed := t.members.Pop(nick)
	if lo.Contains(t.pending, nick) {
		t.pending = lo.Without(t.pending, nick)
		removed = true
	}
	announce := removed && t.state == Populated
	t.mu.Unlock()
	if announce {
		msg := fmt.Sprintf("%s just left the IRC channel", nick)
		if reason != "" {
			msg += fmt.Sprintf(" (%s)", reason)
		}
		t.notify(msg)
	}
	return removed
}

// Quit behaves like Part.
func (t *Tracker) Quit(nick, reason string) bool {
	return t.Part(nick, reason)
}

// NickChange renames oldNick to newNick. The rename is announced even when
// oldNick was not tracked.
func (t *Tracker) NickChange(oldNick, newNick string) {
	t.mu.Lock()
	t.members.Remove(oldNick)
	t.pending = lo.Without(t.pending, oldNick)
	t.members.Add(newNick)
	announce := t.state == Populated
	t.mu.Unlock()
	if announce {
		t.notify(fmt.Sprintf("%s is now known as %s", oldNick, newNick))
	}
}

func (t *Tracker) Has(nick string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.members.Has(nick)
}

// Members returns the current membership sorted by nick.
func (t *Tracker) Members() []string {
	t.mu.Lock()
	members := t.members.AsList()
	t.mu.Unlock()
	slices.Sort(members)
	return members
}

func (t *Tracker) notify(text string) {
	if t.notifier == nil {
		return
	}
	t.notifier.Notify(text)
}
