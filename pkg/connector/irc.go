// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package connector

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aiku/irc-xmpp-bridge/pkg/bridge"
	"github.com/aiku/irc-xmpp-bridge/pkg/command"
	"github.com/aiku/irc-xmpp-bridge/pkg/connector/relayfmt"
	"github.com/aiku/irc-xmpp-bridge/pkg/presence"
	"github.com/rs/zerolog"
)

const privateEchoFormat = "You said: %s"

var (
	ErrNoTransport   = errors.New("transport not attached")
	ErrUnknownSource = errors.New("unknown message source")
)

// IRCTransport is the outbound side of an IRC connection.
type IRCTransport interface {
	Connected() bool
	Privmsg(target, text string) error
	Action(target, text string) error
	Join(channel string) error
}

// IRCEndpoint is the channel-style side of the bridge. It tracks channel
// membership and relays channel chat to the XMPP side.
type IRCEndpoint struct {
	cfg      IRCConfig
	router   *bridge.Router
	presence *presence.Tracker
	commands *command.Dispatcher

	transportMu sync.RWMutex
	transport   IRCTransport

	log zerolog.Logger
}

var _ bridge.Endpoint = (*IRCEndpoint)(nil)

func NewIRCEndpoint(cfg IRCConfig, router *bridge.Router, log zerolog.Logger) *IRCEndpoint {
	e := &IRCEndpoint{
		cfg:    cfg,
		router: router,
		log:    log.With().Str("component", "irc").Logger(),
	}
	e.presence = presence.NewTracker(presence.NotifierFunc(e.notifyXMPP), e.log)
	e.commands = command.NewDispatcher(e, e.log)
	e.commands.Register("users", e.cmdUsers)
	return e
}

// Attach sets the connection used for outbound messages.
func (e *IRCEndpoint) Attach(t IRCTransport) {
	e.transportMu.Lock()
	defer e.transportMu.Unlock()
	e.transport = t
}

func (e *IRCEndpoint) getTransport() IRCTransport {
	e.transportMu.RLock()
	defer e.transportMu.RUnlock()
	return e.transport
}

// Presence exposes the channel membership tracker.
func (e *IRCEndpoint) Presence() *presence.Tracker {
	return e.presence
}

func (e *IRCEndpoint) Connected() bool {
	t := e.getTransport()
	return t != nil && t.Connected()
}

// HandleMessage handles text that arrived in the channel, in a private
// message, or from the XMPP side of the bridge.
func (e *IRCEndpoint) HandleMessage(source bridge.Source, nick, text string) error {
	e.log.Info().Str("source", string(source)).Str("nick", nick).Str("text", text).Msg("Received message")
	switch source {
	case bridge.SourceChannel:
		return e.handleChannelMessage(nick, text)
	case bridge.SourcePrivate:
		return e.Send(nick, fmt.Sprintf(privateEchoFormat, text))
	case bridge.SourceXMPP:
		return e.handleXMPPMessage(nick, text)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}
}

// UserList returns the nicks currently in the channel.
func (e *IRCEndpoint) UserList() []string {
	return e.presence.Members()
}

// Send writes text to target, one PRIVMSG per line.
func (e *IRCEndpoint) Send(target, text string) error {
	t := e.getTransport()
	if t == nil {
		return ErrNoTransport
	}
	for _, line := range relayfmt.Lines(text) {
		if err := t.Privmsg(target, line); err != nil {
			return fmt.Errorf("failed to send to %s: %w", target, err)
		}
	}
	return nil
}

func (e *IRCEndpoint) SendAction(target, text string) error {
	t := e.getTransport()
	if t == nil {
		return ErrNoTransport
	}
	if err := t.Action(target, text); err != nil {
		return fmt.Errorf("failed to send action to %s: %w", target, err)
	}
	return nil
}

// Reply answers a command in the channel it was issued in.
func (e *IRCEndpoint) Reply(_, text string) error {
	return e.Send(e.cfg.Channel, text)
}

func (e *IRCEndpoint) say(text string) error {
	return e.Send(e.cfg.Channel, text)
}

func (e *IRCEndpoint) handleChannelMessage(nick, text string) error {
	if consumed, err := e.dispatch(bridge.SourceChannel, nick, text); consumed {
		return err
	}
	return e.relay(nick, text)
}

// handleXMPPMessage posts a message relayed from XMPP into the channel.
func (e *IRCEndpoint) handleXMPPMessage(nick, text string) error {
	if consumed, err := e.dispatch(bridge.SourceXMPP, nick, text); consumed {
		return err
	}
	if action, ok := relayfmt.ParseAction(text); ok {
		return e.SendAction(e.cfg.Channel, relayfmt.Action(nick, action))
	}
	return e.say(relayfmt.Message(nick, text, bridge.SystemUser))
}

// dispatch offers text to the command table. Only text that originated on
// IRC can run a command.
func (e *IRCEndpoint) dispatch(source bridge.Source, nick, text string) (bool, error) {
	outcome, err := e.commands.Dispatch(source.Local(), nick, text)
	return outcome.Consumed(), err
}

func (e *IRCEndpoint) relay(nick, text string) error {
	err := e.router.Route(bridge.SourceXMPP, bridge.SourceIRC, nick, text)
	if err != nil {
		return fmt.Errorf("relay to XMPP: %w", err)
	}
	e.log.Debug().Str("nick", nick).Msg("Relayed channel message to XMPP")
	return nil
}

// notifyXMPP forwards membership notices as the system user.
func (e *IRCEndpoint) notifyXMPP(text string) {
	if err := e.relay(bridge.SystemUser, text); err != nil {
		e.log.Debug().Err(err).Str("notice", text).Msg("Membership notice dropped")
	}
}

func (e *IRCEndpoint) cmdUsers(command.Request) error {
	users, err := bridge.Call(e.router, bridge.SourceXMPP, func(ep bridge.Endpoint) []string {
		return ep.UserList()
	})
	if err != nil {
		e.log.Warn().Err(err).Msg("Failed to list XMPP users")
	}
	return e.say("Users on XMPP: " + strings.Join(users, ", "))
}
