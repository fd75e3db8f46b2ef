// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package connector implements an IRC-XMPP chat bridge on top of the
// [bridge.Router] mediator.
//
// One side is an IRC channel. The other is a set of XMPP contacts who talk
// to the bridge account in private chats and are tracked in a persistent
// subscriber directory.
//
// # Core Types
//
// [IRCEndpoint] tracks channel membership and relays channel chat. Join,
// part, quit and nick changes are forwarded as notices once the initial
// NAMES listing is complete.
//
// [XMPPEndpoint] auto-subscribes new contacts and runs the roster commands
// (!subscribe, !unsubscribe, !nick, !users, !quit). Subscribers who closed
// their chat get nothing until they speak again or are hailed by nickname
// or trigger word.
//
// [IRCConn] and [XMPPConn] own the network connections. They translate
// protocol traffic into [Event] values and pass them to the endpoint's
// HandleEvent one at a time.
//
// [Bridge] wires everything together and runs both connections.
//
// # Sub-packages
//
//   - relayfmt formats relayed lines and /me actions.
package connector
