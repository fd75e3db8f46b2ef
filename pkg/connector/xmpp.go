// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package connector

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aiku/irc-xmpp-bridge/pkg/bridge"
	"github.com/aiku/irc-xmpp-bridge/pkg/command"
	"github.com/aiku/irc-xmpp-bridge/pkg/connector/relayfmt"
	"github.com/aiku/irc-xmpp-bridge/pkg/subscription"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

const (
	unknownUserNick = "(unknown)"

	HelpMessage = "To set your nickname, type \"!nick <nickname>\"\n" +
		"To list users, type \"!users\"\n" +
		"To stop chatting, type \"!quit\"\n" +
		"To unsubscribe, type \"!unsubscribe\""
)

var errUnchanged = errors.New("subscriber unchanged")

// XMPPTransport is the outbound side of an XMPP connection.
type XMPPTransport interface {
	Connected() bool
	SendChat(to, text string) error
	ApproveSubscription(jid string) error
}

// XMPPEndpoint is the roster-style side of the bridge. Contacts talk to the
// bridge account in private chats; subscribers receive everything said on
// either side unless they closed their chat.
type XMPPEndpoint struct {
	cfg      XMPPConfig
	router   *bridge.Router
	store    *subscription.Store
	commands *command.Dispatcher

	transportMu sync.RWMutex
	transport   XMPPTransport

	log zerolog.Logger
}

var _ bridge.Endpoint = (*XMPPEndpoint)(nil)

func NewXMPPEndpoint(cfg XMPPConfig, router *bridge.Router, store *subscription.Store, log zerolog.Logger) *XMPPEndpoint {
	e := &XMPPEndpoint{
		cfg:    cfg,
		router: router,
		store:  store,
		log:    log.With().Str("component", "xmpp").Logger(),
	}
	e.commands = command.NewDispatcher(e, e.log)
	e.commands.Register("subscribe", e.cmdSubscribe)
	e.commands.Register("unsubscribe", e.cmdUnsubscribe)
	e.commands.Register("nick", e.cmdNick)
	e.commands.Register("users", e.cmdUsers)
	e.commands.Register("quit", e.cmdQuit)
	return e
}

// Attach sets the connection used for outbound messages.
func (e *XMPPEndpoint) Attach(t XMPPTransport) {
	e.transportMu.Lock()
	defer e.transportMu.Unlock()
	e.transport = t
}

func (e *XMPPEndpoint) getTransport() XMPPTransport {
	e.transportMu.RLock()
	defer e.transportMu.RUnlock()
	return e.transport
}

func (e *XMPPEndpoint) Connected() bool {
	t := e.getTransport()
	return t != nil && t.Connected()
}

// HandleMessage handles a private chat from a contact or a message relayed
// from the IRC side.
func (e *XMPPEndpoint) HandleMessage(source bridge.Source, identity, text string) error {
	e.log.Info().Str("source", string(source)).Str("identity", identity).Str("text", text).Msg("Received message")
	switch source {
	case bridge.SourcePrivate:
		return e.handlePrivateMessage(identity, text)
	case bridge.SourceIRC:
		if consumed, err := e.dispatch(source, identity, text); consumed {
			return err
		}
		e.broadcast(identity, text, "")
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}
}

// UserList returns every subscriber's nickname; closed chats are shown in
// parentheses.
func (e *XMPPEndpoint) UserList() []string {
	return lo.Map(e.store.All(), func(sub subscription.Subscriber, _ int) string {
		return sub.String()
	})
}

func (e *XMPPEndpoint) Send(to, text string) error {
	t := e.getTransport()
	if t == nil {
		return ErrNoTransport
	}
	if err := t.SendChat(to, text); err != nil {
		return fmt.Errorf("failed to send to %s: %w", to, err)
	}
	return nil
}

// SendAction sends text as a /me line; XMPP chats have no separate action type.
func (e *XMPPEndpoint) SendAction(to, text string) error {
	return e.Send(to, "/me "+text)
}

// Reply answers a command in the sender's private chat.
func (e *XMPPEndpoint) Reply(identity, text string) error {
	return e.Send(identity, text)
}

func (e *XMPPEndpoint) say(jid, text string) {
	if err := e.Send(jid, text); err != nil {
		e.log.Warn().Err(err).Str("jid", jid).Msg("Failed to send message")
	}
}

func (e *XMPPEndpoint) handlePrivateMessage(jid, text string) error {
	sub, ok := e.store.Get(jid)
	if !ok {
		if cmd, isCmd, _ := command.Parse(text); isCmd && cmd.Name == "unsubscribe" {
			return e.Unsubscribe(jid)
		}
		e.log.Debug().Str("jid", jid).Msg("User is not subscribed")
		if err := e.Subscribe(jid); err != nil {
			return err
		}
		e.help(jid)
		return nil
	}

	// Speaking always reopens a closed chat.
	if !sub.Active {
		if err := e.OpenChat(jid); err != nil {
			return err
		}
	}

	if consumed, err := e.dispatch(bridge.SourcePrivate, jid, text); consumed {
		return err
	}
	return e.sendToAll(jid, text)
}

// dispatch offers text to the command table. Only private chats can run a
// command.
func (e *XMPPEndpoint) dispatch(source bridge.Source, identity, text string) (bool, error) {
	outcome, err := e.commands.Dispatch(source.Local(), identity, text)
	return outcome.Consumed(), err
}

func (e *XMPPEndpoint) help(jid string) {
	e.log.Info().Str("jid", jid).Msg("Presenting help message")
	e.say(jid, HelpMessage)
}

// sendToAll relays a subscriber's text to IRC and to every other subscriber.
func (e *XMPPEndpoint) sendToAll(jid, text string) error {
	nick := unknownUserNick
	if sub, ok := e.store.Get(jid); ok {
		nick = sub.Nickname
	}
	err := e.relayToIRC(nick, text)
	e.broadcast(nick, text, jid)
	return err
}

func (e *XMPPEndpoint) relayToIRC(nick, text string) error {
	if err := e.router.Route(bridge.SourceIRC, bridge.SourceXMPP, nick, text); err != nil {
		return fmt.Errorf("relay to IRC: %w", err)
	}
	return nil
}

// broadcast delivers text from nick to every subscriber that wants it,
// except the one identified by exclude. Inactive subscribers hailed by
// the text are reactivated first.
func (e *XMPPEndpoint) broadcast(nick, text, exclude string) {
	formatted := relayfmt.Message(nick, text, bridge.SystemUser)
	for _, sub := range e.store.All() {
		deliver := sub.Active
		if !deliver {
			deliver = e.reactivate(sub.Identity, text)
		}
		if !deliver || sub.Identity == exclude {
			continue
		}
		e.say(sub.Identity, formatted)
	}
}

// reactivate reopens an inactive subscriber's chat if text hails them.
func (e *XMPPEndpoint) reactivate(jid, text string) bool {
	updated, err := e.store.Update(jid, func(sub *subscription.Subscriber) error {
		if _, changed := sub.Respond(text); !changed {
			return errUnchanged
		}
		return nil
	})
	switch {
	case err == nil:
		e.log.Info().Str("jid", jid).Msg("Subscriber hailed, reopened chat")
		return true
	case errors.Is(err, errUnchanged):
		return updated.Active
	default:
		e.log.Warn().Err(err).Str("jid", jid).Msg("Failed to reactivate subscriber")
		return false
	}
}
