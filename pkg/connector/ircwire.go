// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package connector

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aiku/irc-xmpp-bridge/pkg/connector/relayfmt"
	"github.com/rs/zerolog"
	"gopkg.in/irc.v4"
)

const (
	rplWelcome    = "001"
	rplNamReply   = "353"
	rplEndOfNames = "366"

	ircDialTimeout = 30 * time.Second
)

var ErrIRCNotConnected = errors.New("not connected to IRC")

// IRCConn owns the IRC network loop. It turns server messages into events
// for its handler and implements IRCTransport for outbound traffic.
type IRCConn struct {
	cfg     IRCConfig
	handler EventHandler

	client    atomic.Pointer[irc.Client]
	connected atomic.Bool

	log zerolog.Logger
}

var _ IRCTransport = (*IRCConn)(nil)

func NewIRCConn(cfg IRCConfig, handler EventHandler, log zerolog.Logger) *IRCConn {
	return &IRCConn{
		cfg:     cfg,
		handler: handler,
		log:     log.With().Str("component", "irc_conn").Logger(),
	}
}

// Run connects and keeps reconnecting until ctx is cancelled.
func (c *IRCConn) Run(ctx context.Context) error {
	for {
		err := c.runOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		c.log.Warn().Err(err).Dur("delay", c.cfg.ReconnectDelay).Msg("IRC connection lost, reconnecting")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.cfg.ReconnectDelay):
		}
	}
}

func (c *IRCConn) runOnce(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	client := irc.NewClient(conn, irc.ClientConfig{
		Nick:    c.cfg.Nick,
		Pass:    c.cfg.Password,
		User:    c.cfg.Nick,
		Name:    c.cfg.Name,
		Handler: irc.HandlerFunc(c.handle),
	})
	c.client.Store(client)
	defer func() {
		c.client.Store(nil)
		if c.connected.Swap(false) {
			DispatchEvent(c.handler, Event{Kind: EventDisconnect}, c.log)
		}
	}()

	c.log.Info().Str("server", c.cfg.Server).Int("port", c.cfg.Port).Msg("Connecting to IRC")
	if err = client.RunContext(ctx); err != nil {
		return fmt.Errorf("IRC client stopped: %w", err)
	}
	return nil
}

func (c *IRCConn) dial(ctx context.Context) (net.Conn, error) {
	addr := net.JoinHostPort(c.cfg.Server, strconv.Itoa(c.cfg.Port))
	dialer := &net.Dialer{Timeout: ircDialTimeout}
	var conn net.Conn
	var err error
	if c.cfg.SSL {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: c.cfg.Server}}
		conn, err = tlsDialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	return conn, nil
}

func (c *IRCConn) handle(client *irc.Client, m *irc.Message) {
	evt, ok := c.translate(client.CurrentNick(), m)
	if !ok {
		return
	}
	if evt.Kind == EventConnect {
		c.connected.Store(true)
	}
	DispatchEvent(c.handler, evt, c.log)
}

// translate maps a server message to an event. Messages about the bridge's
// own nick are dropped except for the welcome.
func (c *IRCConn) translate(ownNick string, m *irc.Message) (Event, bool) {
	if m.Command == rplWelcome {
		return Event{Kind: EventConnect}, true
	}
	nick := ""
	if m.Prefix != nil {
		nick = m.Prefix.Name
	}
	self := nick != "" && strings.EqualFold(nick, ownNick)

	switch m.Command {
	case rplNamReply:
		// <me> <type> <channel> :<names>
		if len(m.Params) < 4 {
			return Event{}, false
		}
		return Event{Kind: EventNames, Target: m.Params[2], Names: strings.Fields(m.Trailing())}, true
	case rplEndOfNames:
		if len(m.Params) < 2 {
			return Event{}, false
		}
		return Event{Kind: EventEndOfNames, Target: m.Params[1]}, true
	case "JOIN":
		if self || len(m.Params) < 1 {
			return Event{}, false
		}
		return Event{Kind: EventJoin, Nick: NormalizeNick(nick), Target: m.Params[0]}, true
	case "PART":
		if self || len(m.Params) < 1 {
			return Event{}, false
		}
		evt := Event{Kind: EventPart, Nick: NormalizeNick(nick), Target: m.Params[0]}
		if len(m.Params) > 1 {
			evt.Reason = m.Trailing()
		}
		return evt, true
	case "QUIT":
		if self {
			return Event{}, false
		}
		return Event{Kind: EventQuit, Nick: NormalizeNick(nick), Reason: m.Trailing()}, true
	case "NICK":
		if self || len(m.Params) < 1 {
			return Event{}, false
		}
		return Event{Kind: EventNickChange, Nick: NormalizeNick(nick), NewNick: NormalizeNick(m.Params[0])}, true
	case "PRIVMSG":
		if self || len(m.Params) < 2 {
			return Event{}, false
		}
		text := m.Trailing()
		if action, ok := relayfmt.ParseCTCPAction(text); ok {
			text = "/me " + action
		} else if strings.HasPrefix(text, "\x01") {
			c.log.Debug().Str("nick", nick).Msg("Ignoring CTCP request")
			return Event{}, false
		}
		evt := Event{Nick: NormalizeNick(nick), Target: m.Params[0], Text: text}
		if isChannel(evt.Target) {
			evt.Kind = EventChannelMessage
		} else {
			evt.Kind = EventPrivateMessage
		}
		return evt, true
	}
	return Event{}, false
}

func isChannel(target string) bool {
	return target != "" && strings.ContainsRune("#&+!", rune(target[0]))
}

func (c *IRCConn) Connected() bool {
	return c.connected.Load()
}

func (c *IRCConn) write(m *irc.Message) error {
	client := c.client.Load()
	if client == nil || !c.connected.Load() {
		return ErrIRCNotConnected
	}
	return client.WriteMessage(m)
}

func (c *IRCConn) Privmsg(target, text string) error {
	return c.write(&irc.Message{Command: "PRIVMSG", Params: []string{target, text}})
}

// Action sends text as a CTCP ACTION.
func (c *IRCConn) Action(target, text string) error {
	return c.Privmsg(target, relayfmt.CTCPAction(text))
}

func (c *IRCConn) Join(channel string) error {
	c.log.Info().Str("channel", channel).Msg("Joining channel")
	return c.write(&irc.Message{Command: "JOIN", Params: []string{channel}})
}
