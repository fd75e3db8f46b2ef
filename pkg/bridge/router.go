// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package bridge connects independent chat endpoints through a single
// mediator. Endpoints never hold references to each other; everything one
// side does to the other goes through a [Router].
package bridge

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

var (
	ErrUnknownEndpoint = errors.New("endpoint is not registered")
	ErrNotConnected    = errors.New("endpoint is not connected")
)

// SystemUser is the identity used for notices generated by the bridge itself.
const SystemUser = "***"

// Source tags where a message entered an endpoint's HandleMessage.
type Source string

const (
	// Endpoint names. A message tagged with one of these was relayed across
	// the bridge.
	SourceIRC  Source = "irc"
	SourceXMPP Source = "xmpp"

	// Local origins, set by the adapter that received the message.
	SourceChannel Source = "channel"
	SourcePrivate Source = "private"
)

// Local reports whether the message originated on the receiving endpoint.
func (s Source) Local() bool {
	return s == SourceChannel || s == SourcePrivate
}

// Endpoint is the capability set every side of the bridge exposes.
type Endpoint interface {
	Connected() bool
	HandleMessage(source Source, identity, text string) error
	UserList() []string
	Send(target, text string) error
	SendAction(target, text string) error
}

// Router forwards messages between registered endpoints. Every operation
// holds the same lock, so endpoint code invoked by the router must not call
// back into it.
type Router struct {
	mu        sync.Mutex
	endpoints map[Source]Endpoint
	log       zerolog.Logger
}

func NewRouter(log zerolog.Logger) *Router {
	return &Router{
		endpoints: make(map[Source]Endpoint),
		log:       log.With().Str("component", "router").Logger(),
	}
}

// Register installs or replaces the endpoint known as name.
func (r *Router) Register(name Source, ep Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[name] = ep
	r.log.Debug().Str("endpoint", string(name)).Msg("Registered endpoint")
}

// Route delivers text from identity on endpoint from to endpoint to.
// Delivery is best-effort: if the target is missing or disconnected the
// message is logged and dropped.
func (r *Router) Route(to, from Source, identity, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	log := r.log.With().Str("to", string(to)).Str("from", string(from)).Str("identity", identity).Logger()

	ep, ok := r.endpoints[to]
	if !ok {
		log.Warn().Msg("Dropping message for unregistered endpoint")
		return ErrUnknownEndpoint
	}
	if !ep.Connected() {
		log.Warn().Msg("Dropping message for disconnected endpoint")
		return ErrNotConnected
	}
	log.Debug().Msg("Routing message")
	if err := ep.HandleMessage(from, identity, text); err != nil {
		log.Warn().Err(err).Msg("Endpoint failed to handle routed message")
		return err
	}
	return nil
}

// Invoke runs fn against the endpoint named to while holding the router lock.
func (r *Router) Invoke(to Source, fn func(ep Endpoint)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ep, ok := r.endpoints[to]
	if !ok {
		r.log.Warn().Str("to", string(to)).Msg("Call to unregistered endpoint")
		return ErrUnknownEndpoint
	}
	fn(ep)
	return nil
}

// Call is a typed request/response round trip through the router. It
// returns the zero value and ErrUnknownEndpoint if to is not registered.
func Call[T any](r *Router, to Source, fn func(ep Endpoint) T) (T, error) {
	var result T
	err := r.Invoke(to, func(ep Endpoint) {
		result = fn(ep)
	})
	return result, err
}
