// Copyright 2024-2026 Aiku AI

package subscription

import (
	"regexp"
	"slices"
)

var nicknameRe = regexp.MustCompile(`^[A-Za-z0-9_-]{3,10}$`)

// Subscriber is the persisted state of a roster identity taking part in the bridge.
type Subscriber struct {
	Identity string   `yaml:"-"`
	Nickname string   `yaml:"nickname"`
	Triggers []string `yaml:"triggers"`
	Active   bool     `yaml:"active"`
}

// NewSubscriber returns an active subscriber whose nickname defaults to its identity.
func NewSubscriber(identity string) Subscriber {
	return Subscriber{
		Identity: identity,
		Nickname: identity,
		Triggers: []string{},
		Active:   true,
	}
}

// ValidNickname reports whether nick is acceptable as a requested nickname.
func ValidNickname(nick string) bool {
	return nicknameRe.MatchString(nick)
}

// SetNickname changes the nickname if it passes the format check. The
// previous nickname is kept on failure.
func (s *Subscriber) SetNickname(nick string) error {
	if !ValidNickname(nick) {
		return ErrInvalidNickname
	}
	s.Nickname = nick
	return nil
}

// Close stops delivery until the subscriber speaks again or is hailed.
func (s *Subscriber) Close() {
	s.Active = false
}

func (s *Subscriber) Open() {
	s.Active = true
}

// Hailed reports whether text mentions the nickname or one of the triggers
// as a whole word.
func (s *Subscriber) Hailed(text string) bool {
	for _, word := range append([]string{s.Nickname}, s.Triggers...) {
		if word == "" {
			continue
		}
		if wholeWord(word).MatchString(text) {
			return true
		}
	}
	return false
}

// Respond reports whether a broadcast with the given text should be
// delivered, reopening the chat when an inactive subscriber is hailed. The
// returned changed flag is true when the subscriber was reactivated.
func (s *Subscriber) Respond(text string) (deliver, changed bool) {
	if s.Active {
		return true, false
	}
	if s.Hailed(text) {
		s.Open()
		return true, true
	}
	return false, false
}

func (s Subscriber) String() string {
	if s.Active {
		return s.Nickname
	}
	return "(" + s.Nickname + ")"
}

func (s Subscriber) clone() Subscriber {
	s.Triggers = slices.Clone(s.Triggers)
	if s.Triggers == nil {
		s.Triggers = []string{}
	}
	return s
}

// wholeWord matches word when it is not flanked by nickname characters.
func wholeWord(word string) *regexp.Regexp {
	return regexp.MustCompile(`(^|[^A-Za-z0-9_-])` + regexp.QuoteMeta(word) + `($|[^A-Za-z0-9_-])`)
}
