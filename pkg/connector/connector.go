// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package connector

import (
	"context"
	"fmt"

	"github.com/aiku/irc-xmpp-bridge/pkg/bridge"
	"github.com/aiku/irc-xmpp-bridge/pkg/subscription"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Bridge wires both endpoints to a router and owns their connections.
type Bridge struct {
	Config *Config
	Router *bridge.Router
	Store  *subscription.Store
	IRC    *IRCEndpoint
	XMPP   *XMPPEndpoint

	ircConn  *IRCConn
	xmppConn *XMPPConn

	log zerolog.Logger
}

// NewBridge loads the subscriber directory and builds both endpoints. An
// unreadable directory file is fatal.
func NewBridge(cfg *Config, log zerolog.Logger) (*Bridge, error) {
	store, err := subscription.Open(cfg.XMPP.SubscriptionsFile, true, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscriptions: %w", err)
	}
	log.Info().
		Int("subscriptions", store.Len()).
		Str("path", store.Path()).
		Msg("Loaded subscriptions")

	b := &Bridge{
		Config: cfg,
		Router: bridge.NewRouter(log),
		Store:  store,
		log:    log,
	}
	b.IRC = NewIRCEndpoint(cfg.IRC, b.Router, log)
	b.XMPP = NewXMPPEndpoint(cfg.XMPP, b.Router, store, log)
	b.Router.Register(bridge.SourceIRC, b.IRC)
	b.Router.Register(bridge.SourceXMPP, b.XMPP)

	b.ircConn = NewIRCConn(cfg.IRC, b.IRC, log)
	b.IRC.Attach(b.ircConn)
	b.xmppConn, err = NewXMPPConn(cfg.XMPP, b.XMPP, log)
	if err != nil {
		return nil, err
	}
	b.XMPP.Attach(b.xmppConn)
	return b, nil
}

// Run connects both sides and blocks until ctx is cancelled or a
// connection fails permanently. The subscriber directory is flushed to
// disk on the way out.
func (b *Bridge) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.ircConn.Run(ctx)
	})
	g.Go(func() error {
		return b.xmppConn.Run(ctx)
	})
	err := g.Wait()
	if saveErr := b.Store.Save(); saveErr != nil {
		b.log.Err(saveErr).Str("path", b.Store.Path()).Msg("Failed to save subscriptions on shutdown")
	}
	b.log.Info().Msg("Bridge stopped")
	return err
}
