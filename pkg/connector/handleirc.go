// Copyright 2024-2026 Aiku AI

package connector

import (
	"github.com/aiku/irc-xmpp-bridge/pkg/bridge"
)

type ircEventHandler func(e *IRCEndpoint, evt Event) error

// ircEventHandlers is the fixed dispatch table for IRC events.
var ircEventHandlers = map[EventKind]ircEventHandler{
	EventConnect:        (*IRCEndpoint).handleConnect,
	EventDisconnect:     (*IRCEndpoint).handleDisconnect,
	EventNames:          (*IRCEndpoint).handleNames,
	EventEndOfNames:     (*IRCEndpoint).handleEndOfNames,
	EventJoin:           (*IRCEndpoint).handleJoin,
	EventPart:           (*IRCEndpoint).handlePart,
	EventQuit:           (*IRCEndpoint).handleQuit,
	EventNickChange:     (*IRCEndpoint).handleNickChange,
	EventChannelMessage: (*IRCEndpoint).handleChannelEvent,
	EventPrivateMessage: (*IRCEndpoint).handlePrivateEvent,
}

// HandleEvent implements EventHandler.
func (e *IRCEndpoint) HandleEvent(evt Event) error {
	handler, ok := ircEventHandlers[evt.Kind]
	if !ok {
		return unhandled(evt.Kind)
	}
	return handler(e, evt)
}

func (e *IRCEndpoint) handleConnect(Event) error {
	e.log.Debug().Str("channel", e.cfg.Channel).Msg("IRC connected, joining channel")
	e.presence.Reset()
	t := e.getTransport()
	if t == nil {
		return ErrNoTransport
	}
	return t.Join(e.cfg.Channel)
}

func (e *IRCEndpoint) handleDisconnect(Event) error {
	e.log.Info().Msg("IRC disconnected")
	return nil
}

func (e *IRCEndpoint) handleNames(evt Event) error {
	if !sameChannel(evt.Target, e.cfg.Channel) {
		return nil
	}
	e.log.Debug().Strs("names", evt.Names).Msg("NAMES")
	e.presence.AddNames(evt.Names)
	return nil
}

func (e *IRCEndpoint) handleEndOfNames(evt Event) error {
	if !sameChannel(evt.Target, e.cfg.Channel) {
		return nil
	}
	e.log.Debug().Msg("END OF NAMES")
	e.presence.EndNames()
	return nil
}

func (e *IRCEndpoint) handleJoin(evt Event) error {
	if !sameChannel(evt.Target, e.cfg.Channel) {
		return nil
	}
	e.presence.Join(evt.Nick)
	return nil
}

func (e *IRCEndpoint) handlePart(evt Event) error {
	if !sameChannel(evt.Target, e.cfg.Channel) {
		return nil
	}
	e.presence.Part(evt.Nick, evt.Reason)
	return nil
}

func (e *IRCEndpoint) handleQuit(evt Event) error {
	e.presence.Quit(evt.Nick, evt.Reason)
	return nil
}

func (e *IRCEndpoint) handleNickChange(evt Event) error {
	e.presence.NickChange(evt.Nick, evt.NewNick)
	return nil
}

func (e *IRCEndpoint) handleChannelEvent(evt Event) error {
	if !sameChannel(evt.Target, e.cfg.Channel) {
		return nil
	}
	return e.HandleMessage(bridge.SourceChannel, evt.Nick, evt.Text)
}

func (e *IRCEndpoint) handlePrivateEvent(evt Event) error {
	return e.HandleMessage(bridge.SourcePrivate, evt.Nick, evt.Text)
}
