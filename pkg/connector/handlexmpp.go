// Copyright 2024-2026 Aiku AI

package connector

import (
	"github.com/aiku/irc-xmpp-bridge/pkg/bridge"
)

type xmppEventHandler func(e *XMPPEndpoint, evt Event) error

// xmppEventHandlers is the fixed dispatch table for XMPP events.
var xmppEventHandlers = map[EventKind]xmppEventHandler{
	EventConnect:             (*XMPPEndpoint).handleConnect,
	EventDisconnect:          (*XMPPEndpoint).handleDisconnect,
	EventPrivateMessage:      (*XMPPEndpoint).handlePrivateEvent,
	EventSubscriptionRequest: (*XMPPEndpoint).handleSubscriptionRequest,
}

// HandleEvent implements EventHandler.
func (e *XMPPEndpoint) HandleEvent(evt Event) error {
	handler, ok := xmppEventHandlers[evt.Kind]
	if !ok {
		return unhandled(evt.Kind)
	}
	return handler(e, evt)
}

func (e *XMPPEndpoint) handleConnect(Event) error {
	e.log.Info().Int("subscriptions", e.store.Len()).Msg("XMPP connected")
	return nil
}

func (e *XMPPEndpoint) handleDisconnect(Event) error {
	e.log.Info().Msg("XMPP disconnected")
	return nil
}

func (e *XMPPEndpoint) handlePrivateEvent(evt Event) error {
	jid := BareJID(evt.Nick)
	if jid == "" || jid == BareJID(e.cfg.JID) {
		return nil
	}
	return e.HandleMessage(bridge.SourcePrivate, jid, evt.Text)
}

func (e *XMPPEndpoint) handleSubscriptionRequest(evt Event) error {
	jid := BareJID(evt.Nick)
	e.log.Info().Str("jid", jid).Msg("Approving subscription request")
	t := e.getTransport()
	if t == nil {
		return ErrNoTransport
	}
	return t.ApproveSubscription(jid)
}
