// Copyright 2024-2026 Aiku AI

package connector

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aiku/irc-xmpp-bridge/pkg/bridge"
	"github.com/aiku/irc-xmpp-bridge/pkg/command"
	"github.com/aiku/irc-xmpp-bridge/pkg/subscription"
)

const (
	replyNotSubscribed     = "You are not subscribed!"
	replySubscribed        = "You are now subscribed."
	replyAlreadySubscribed = "You are already subscribed.  I have made sure you're in on the conversation though."
	replyUnsubscribed      = "You are now unsubscribed.  Send another message to be re-subscribed."
	replyNickNotSubscribed = "You are not subscribed, so cannot change your nick."
	replyNickTaken         = "That nick is already taken, sorry."
	replyNickRejected      = "Your requested nick was not accepted."
	replyNickChanged       = "You are now known as %s."
	replyChatClosed        = "You will no longer receive messages until you speak again, or are hailed."
	noticeGoodbye          = "Goodbye!  Say my nick to hail me."
	noticeNickChanged      = "%s is now known as %s."
	noticeUserSubscribed   = "User %s just subscribed.  We now have %d subscription[s]."
	noticeUserUnsubscribed = "User %s (%s) just unsubscribed.  We now have %d subscription[s]."
	userListFormat         = "Users on IRC: %s\nUsers on XMPP: %s"
)

// Subscribe adds jid to the directory. Subscribing twice only reopens the
// chat.
func (e *XMPPEndpoint) Subscribe(jid string) error {
	if _, ok := e.store.Get(jid); ok {
		if _, err := e.store.Update(jid, func(sub *subscription.Subscriber) error {
			sub.Open()
			return nil
		}); err != nil {
			return fmt.Errorf("failed to reopen chat for %s: %w", jid, err)
		}
		e.say(jid, replyAlreadySubscribed)
		return nil
	}

	e.log.Info().Str("jid", jid).Msg("Adding subscription")
	if err := e.store.Put(jid, subscription.NewSubscriber(jid)); err != nil {
		return fmt.Errorf("failed to subscribe %s: %w", jid, err)
	}
	e.say(jid, replySubscribed)
	e.announce(fmt.Sprintf(noticeUserSubscribed, jid, e.store.Len()), jid)
	return nil
}

// Unsubscribe removes jid from the directory. Unknown identities only get
// an informative reply.
func (e *XMPPEndpoint) Unsubscribe(jid string) error {
	sub, ok := e.store.Get(jid)
	if !ok {
		e.say(jid, replyNotSubscribed)
		return nil
	}
	if _, err := e.store.Delete(jid); err != nil {
		return fmt.Errorf("failed to unsubscribe %s: %w", jid, err)
	}
	e.log.Info().Str("jid", jid).Msg("Removed subscription")
	e.say(jid, replyUnsubscribed)
	e.announce(fmt.Sprintf(noticeUserUnsubscribed, sub.String(), jid, e.store.Len()), "")
	return nil
}

// SetNick renames jid. Rejections leave the directory untouched and are
// reported to the requester.
func (e *XMPPEndpoint) SetNick(jid, nick string) error {
	var oldNick string
	updated, err := e.store.Update(jid, func(sub *subscription.Subscriber) error {
		oldNick = sub.Nickname
		return sub.SetNickname(nick)
	})
	switch {
	case errors.Is(err, subscription.ErrNotSubscribed):
		e.say(jid, replyNickNotSubscribed)
		return err
	case errors.Is(err, subscription.ErrNicknameTaken):
		e.say(jid, replyNickTaken)
		return err
	case errors.Is(err, subscription.ErrInvalidNickname):
		e.log.Info().Str("jid", jid).Str("nick", nick).Msg("Nick change rejected")
		e.say(jid, replyNickRejected)
		return err
	case err != nil:
		return fmt.Errorf("failed to change nick of %s: %w", jid, err)
	}
	e.say(jid, fmt.Sprintf(replyNickChanged, updated.Nickname))
	e.log.Info().Str("old_nick", oldNick).Str("nick", updated.Nickname).Msg("Nick changed")
	return e.sendToAll(jid, fmt.Sprintf(noticeNickChanged, oldNick, updated.Nickname))
}

// CloseChat stops delivery to jid until they speak again or are hailed.
func (e *XMPPEndpoint) CloseChat(jid string) error {
	if _, ok := e.store.Get(jid); !ok {
		e.say(jid, replyNotSubscribed)
		return nil
	}
	relayErr := e.sendToAll(jid, noticeGoodbye)
	if _, err := e.store.Update(jid, func(sub *subscription.Subscriber) error {
		sub.Close()
		return nil
	}); err != nil {
		return fmt.Errorf("failed to close chat for %s: %w", jid, err)
	}
	e.say(jid, replyChatClosed)
	if relayErr != nil {
		e.log.Debug().Err(relayErr).Msg("Goodbye not relayed to IRC")
	}
	return nil
}

// OpenChat resumes delivery to jid.
func (e *XMPPEndpoint) OpenChat(jid string) error {
	_, err := e.store.Update(jid, func(sub *subscription.Subscriber) error {
		sub.Open()
		return nil
	})
	if errors.Is(err, subscription.ErrNotSubscribed) {
		e.say(jid, replyNotSubscribed)
		return nil
	} else if err != nil {
		return fmt.Errorf("failed to open chat for %s: %w", jid, err)
	}
	e.log.Info().Str("jid", jid).Msg("Opened chat")
	return nil
}

// announce sends a system notice to IRC and to subscribers other than
// exclude.
func (e *XMPPEndpoint) announce(text, exclude string) {
	if err := e.relayToIRC(bridge.SystemUser, text); err != nil {
		e.log.Debug().Err(err).Str("notice", text).Msg("Notice not relayed to IRC")
	}
	e.broadcast(bridge.SystemUser, text, exclude)
}

func (e *XMPPEndpoint) cmdSubscribe(req command.Request) error {
	return e.Subscribe(req.Identity)
}

func (e *XMPPEndpoint) cmdUnsubscribe(req command.Request) error {
	return e.Unsubscribe(req.Identity)
}

func (e *XMPPEndpoint) cmdNick(req command.Request) error {
	return e.SetNick(req.Identity, req.Command.Arg(0))
}

func (e *XMPPEndpoint) cmdQuit(req command.Request) error {
	return e.CloseChat(req.Identity)
}

func (e *XMPPEndpoint) cmdUsers(req command.Request) error {
	ircUsers, err := bridge.Call(e.router, bridge.SourceIRC, func(ep bridge.Endpoint) []string {
		return ep.UserList()
	})
	if err != nil {
		e.log.Warn().Err(err).Msg("Failed to list IRC users")
	}
	e.say(req.Identity, fmt.Sprintf(userListFormat,
		strings.Join(ircUsers, ", "), strings.Join(e.UserList(), ", ")))
	return nil
}
