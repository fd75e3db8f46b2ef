// Copyright 2024-2026 Aiku AI

package connector

import (
	"strings"

	"github.com/aiku/irc-xmpp-bridge/pkg/presence"
)

// BareJID strips the resource from a JID and lowercases it, giving the
// identity a roster contact is stored under.
func BareJID(jid string) string {
	if slash := strings.IndexByte(jid, '/'); slash >= 0 {
		jid = jid[:slash]
	}
	return strings.ToLower(strings.TrimSpace(jid))
}

// NormalizeNick makes IRC nicks from different sources comparable.
func NormalizeNick(nick string) string {
	return presence.Normalize(strings.TrimSpace(nick))
}

// sameChannel compares IRC channel names, which are case-insensitive.
func sameChannel(a, b string) bool {
	return strings.EqualFold(a, b)
}
