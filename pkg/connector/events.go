// Copyright 2024-2026 Aiku AI

package connector

import (
	"errors"
	"fmt"

	"github.com/aiku/irc-xmpp-bridge/pkg/bridge"
	"github.com/aiku/irc-xmpp-bridge/pkg/command"
	"github.com/aiku/irc-xmpp-bridge/pkg/subscription"
	"github.com/rs/zerolog"
)

// EventKind tags a normalized protocol event.
type EventKind string

const (
	EventConnect             EventKind = "connect"
	EventDisconnect          EventKind = "disconnect"
	EventNames               EventKind = "names"
	EventEndOfNames          EventKind = "end_of_names"
	EventJoin                EventKind = "join"
	EventPart                EventKind = "part"
	EventQuit                EventKind = "quit"
	EventNickChange          EventKind = "nick_change"
	EventChannelMessage      EventKind = "channel_message"
	EventPrivateMessage      EventKind = "private_message"
	EventSubscriptionRequest EventKind = "subscription_request"
)

// Event is a protocol event after the adapter has normalized it. Nick is
// the identity the event is about (IRC nick or bare JID).
type Event struct {
	Kind    EventKind
	Nick    string
	Target  string
	Text    string
	NewNick string
	Reason  string
	Names   []string
}

// EventHandler consumes normalized events. Only the adapter that owns the
// network loop calls HandleEvent.
type EventHandler interface {
	HandleEvent(evt Event) error
}

var errUnhandledEvent = errors.New("no handler for event")

// DispatchEvent hands evt to h and logs the outcome. A panic in the handler
// is recovered so the adapter's event loop keeps running.
func DispatchEvent(h EventHandler, evt Event, log zerolog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Any("panic", r).
				Str("event", string(evt.Kind)).
				Str("nick", evt.Nick).
				Msg("Panic while handling event")
		}
	}()
	err := h.HandleEvent(evt)
	switch {
	case err == nil:
	case errors.Is(err, errUnhandledEvent):
		log.Trace().Str("event", string(evt.Kind)).Msg("Unhandled event type")
	case isRecoverable(err):
		log.Debug().Err(err).Str("event", string(evt.Kind)).Str("nick", evt.Nick).Msg("Event rejected")
	default:
		log.Warn().Err(err).Str("event", string(evt.Kind)).Str("nick", evt.Nick).Msg("Failed to handle event")
	}
}

// isRecoverable reports whether err is an expected, user-facing rejection
// that was already reported back to the sender.
func isRecoverable(err error) bool {
	return errors.Is(err, subscription.ErrInvalidNickname) ||
		errors.Is(err, subscription.ErrNicknameTaken) ||
		errors.Is(err, subscription.ErrNotSubscribed) ||
		errors.Is(err, command.ErrMalformed) ||
		errors.Is(err, bridge.ErrUnknownEndpoint) ||
		errors.Is(err, bridge.ErrNotConnected)
}

func unhandled(kind EventKind) error {
	return fmt.Errorf("%w: %s", errUnhandledEvent, kind)
}
