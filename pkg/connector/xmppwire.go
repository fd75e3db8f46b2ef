// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package connector

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gosrc.io/xmpp"
	"gosrc.io/xmpp/stanza"
)

var ErrXMPPNotConnected = errors.New("not connected to XMPP")

// XMPPConn owns the XMPP stream. Incoming stanzas become events for the
// handler.
type XMPPConn struct {
	cfg     XMPPConfig
	handler EventHandler

	client    *xmpp.Client
	connected atomic.Bool

	log zerolog.Logger
}

var _ XMPPTransport = (*XMPPConn)(nil)

func NewXMPPConn(cfg XMPPConfig, handler EventHandler, log zerolog.Logger) (*XMPPConn, error) {
	c := &XMPPConn{
		cfg:     cfg,
		handler: handler,
		log:     log.With().Str("component", "xmpp_conn").Logger(),
	}

	router := xmpp.NewRouter()
	router.HandleFunc("message", c.handleMessage)
	router.HandleFunc("presence", c.handlePresence)

	client, err := xmpp.NewClient(&xmpp.Config{
		TransportConfiguration: xmpp.TransportConfiguration{
			Address: cfg.Address,
		},
		Jid:        cfg.JID,
		Credential: xmpp.Password(cfg.Password),
	}, router, c.handleStreamError)
	if err != nil {
		return nil, fmt.Errorf("failed to create XMPP client: %w", err)
	}
	c.client = client
	return c, nil
}

// Run keeps the stream up until ctx is cancelled. Once established, the
// library's stream manager resumes dropped sessions; a failed connect is
// retried after the configured reconnect delay.
func (c *XMPPConn) Run(ctx context.Context) error {
	for {
		err := c.runOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		c.log.Warn().Err(err).Dur("delay", c.cfg.ReconnectDelay).Msg("XMPP connection lost, reconnecting")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.cfg.ReconnectDelay):
		}
	}
}

func (c *XMPPConn) runOnce(ctx context.Context) error {
	manager := xmpp.NewStreamManager(c.client, c.postConnect)
	errCh := make(chan error, 1)
	go func() {
		c.log.Info().Str("address", c.cfg.Address).Str("jid", c.cfg.JID).Msg("Connecting to XMPP")
		errCh <- manager.Run()
	}()

	select {
	case <-ctx.Done():
		// Stop is only valid once the manager holds an established session.
		if c.connected.Load() {
			manager.Stop()
		}
		c.setDisconnected()
		return nil
	case err := <-errCh:
		c.setDisconnected()
		if err != nil {
			return fmt.Errorf("XMPP stream manager stopped: %w", err)
		}
		return errors.New("XMPP stream manager stopped")
	}
}

func (c *XMPPConn) postConnect(s xmpp.Sender) {
	if err := s.Send(stanza.Presence{}); err != nil {
		c.log.Warn().Err(err).Msg("Failed to send initial presence")
	}
	c.connected.Store(true)
	DispatchEvent(c.handler, Event{Kind: EventConnect}, c.log)
}

func (c *XMPPConn) handleStreamError(err error) {
	c.log.Warn().Err(err).Msg("XMPP stream error")
	c.setDisconnected()
}

func (c *XMPPConn) setDisconnected() {
	if c.connected.Swap(false) {
		DispatchEvent(c.handler, Event{Kind: EventDisconnect}, c.log)
	}
}

func (c *XMPPConn) handleMessage(_ xmpp.Sender, p stanza.Packet) {
	msg, ok := p.(stanza.Message)
	if !ok || msg.Body == "" {
		return
	}
	if msg.Type == stanza.MessageTypeError || msg.Type == stanza.MessageTypeGroupchat {
		c.log.Debug().Str("from", msg.From).Str("type", string(msg.Type)).Msg("Ignoring message")
		return
	}
	DispatchEvent(c.handler, Event{Kind: EventPrivateMessage, Nick: msg.From, Text: msg.Body}, c.log)
}

func (c *XMPPConn) handlePresence(_ xmpp.Sender, p stanza.Packet) {
	pres, ok := p.(stanza.Presence)
	if !ok || pres.Type != stanza.PresenceTypeSubscribe {
		return
	}
	DispatchEvent(c.handler, Event{Kind: EventSubscriptionRequest, Nick: pres.From}, c.log)
}

func (c *XMPPConn) Connected() bool {
	return c.connected.Load()
}

func (c *XMPPConn) send(p stanza.Packet) error {
	if !c.connected.Load() {
		return ErrXMPPNotConnected
	}
	return c.client.Send(p)
}

func (c *XMPPConn) SendChat(to, text string) error {
	return c.send(stanza.Message{
		Attrs: stanza.Attrs{To: to, Type: stanza.MessageTypeChat},
		Body:  text,
	})
}

// ApproveSubscription accepts a contact's subscription request.
func (c *XMPPConn) ApproveSubscription(jid string) error {
	return c.send(stanza.Presence{
		Attrs: stanza.Attrs{To: jid, Type: stanza.PresenceTypeSubscribed},
	})
}
