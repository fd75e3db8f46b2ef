// Copyright 2024-2026 Aiku AI

package command

import (
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

const MalformedReply = "Sorry, I could not read the arguments of that command."

// Outcome describes what Dispatch did with a piece of text.
type Outcome int

const (
	NotCommand Outcome = iota
	Executed
	Unknown
	Ignored
	Malformed
)

func (o Outcome) String() string {
	switch o {
	case NotCommand:
		return "not-command"
	case Executed:
		return "executed"
	case Unknown:
		return "unknown"
	case Ignored:
		return "ignored"
	case Malformed:
		return "malformed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Consumed reports whether the text was taken as a command and must not be
// relayed as plain chat.
func (o Outcome) Consumed() bool {
	return o != NotCommand && o != Ignored
}

// Request is a command addressed to a handler.
type Request struct {
	Identity string
	Command
}

type Handler func(req Request) error

// Replier delivers a reply to the sender of a command on the endpoint the
// command arrived on.
type Replier interface {
	Reply(identity, text string) error
}

// Dispatcher is the command table of one endpoint. Handlers are registered
// during setup; the table is read-only afterwards.
type Dispatcher struct {
	handlers map[string]Handler
	replier  Replier
	log      zerolog.Logger
}

func NewDispatcher(replier Replier, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]Handler),
		replier:  replier,
		log:      log.With().Str("component", "commands").Logger(),
	}
}

// Register installs h under the case-folded name.
func (d *Dispatcher) Register(name string, h Handler) {
	name = strings.ToLower(name)
	if _, exists := d.handlers[name]; exists {
		panic(fmt.Sprintf("command %q registered twice", name))
	}
	d.handlers[name] = h
}

// Names lists the registered commands in sorted order.
func (d *Dispatcher) Names() []string {
	names := lo.Keys(d.handlers)
	slices.Sort(names)
	return names
}

// Dispatch runs text as a command from identity. Commands only execute
// when local is set; commands relayed from the other endpoint are ignored.
func (d *Dispatcher) Dispatch(local bool, identity, text string) (Outcome, error) {
	cmd, ok, err := Parse(text)
	if !ok {
		return NotCommand, nil
	}
	log := d.log.With().Str("identity", identity).Str("command", cmd.Name).Logger()
	if !local {
		log.Debug().Msg("Ignoring command relayed across the bridge")
		return Ignored, nil
	}
	if err != nil {
		log.Debug().Err(err).Msg("Malformed command")
		d.reply(identity, MalformedReply)
		return Malformed, err
	}

	handler, ok := d.handlers[cmd.Name]
	if !ok {
		log.Debug().Msg("Unrecognised command")
		d.reply(identity, UnknownReply)
		return Unknown, nil
	}
	log.Debug().Strs("args", cmd.Args).Msg("Running command")
	if err := handler(Request{Identity: identity, Command: cmd}); err != nil {
		return Executed, fmt.Errorf("command %s: %w", cmd.Name, err)
	}
	return Executed, nil
}

func (d *Dispatcher) reply(identity, text string) {
	if d.replier == nil {
		return
	}
	if err := d.replier.Reply(identity, text); err != nil {
		d.log.Warn().Err(err).Str("identity", identity).Msg("Failed to send command reply")
	}
}
