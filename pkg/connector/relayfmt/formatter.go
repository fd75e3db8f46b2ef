// Copyright 2024-2026 Aiku AI

// Package relayfmt formats text relayed between the two sides of the bridge.
package relayfmt

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	messageFormat = "[%s]: %s"
	actionFormat  = "(as %s) %s"
	ctcpDelim     = "\x01"
)

var actionRe = regexp.MustCompile(`^/me\s(.+)$`)

// Message prefixes text with the speaker's nick. Notices from systemUser
// and empty nicks are passed through unchanged.
func Message(nick, text, systemUser string) string {
	if nick == "" || nick == systemUser {
		return text
	}
	return fmt.Sprintf(messageFormat, nick, text)
}

// ParseAction extracts the action text from a "/me does something" line.
func ParseAction(text string) (string, bool) {
	match := actionRe.FindStringSubmatch(text)
	if match == nil {
		return "", false
	}
	return match[1], true
}

// Action renders an action performed by nick for a side that cannot
// attribute actions to remote users.
func Action(nick, action string) string {
	return fmt.Sprintf(actionFormat, nick, action)
}

// ParseCTCPAction extracts the text of an IRC CTCP ACTION payload.
func ParseCTCPAction(text string) (string, bool) {
	if !strings.HasPrefix(text, ctcpDelim+"ACTION ") {
		return "", false
	}
	action := strings.TrimPrefix(text, ctcpDelim+"ACTION ")
	return strings.TrimSuffix(action, ctcpDelim), true
}

// CTCPAction wraps text as an IRC CTCP ACTION payload.
func CTCPAction(text string) string {
	return ctcpDelim + "ACTION " + text + ctcpDelim
}

// Lines splits text into non-empty lines for line-oriented transports.
func Lines(text string) []string {
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}
