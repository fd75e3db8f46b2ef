// Copyright 2024-2026 Aiku AI

// Package command implements the "!name args" grammar shared by both ends
// of the bridge and a per-endpoint dispatch table.
package command

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/shlex"
)

var commandRe = regexp.MustCompile(`^!([A-Za-z0-9]+)(.*)$`)

// ErrMalformed is returned when the arguments cannot be tokenized.
var ErrMalformed = errors.New("malformed command arguments")

const UnknownReply = "Unrecognised command!"

// Command is a parsed command line.
type Command struct {
	Name string
	Args []string
}

// Parse splits a command line into its lowercased name and shell-style
// arguments. ok is false when text is not a command.
func Parse(text string) (cmd Command, ok bool, err error) {
	match := commandRe.FindStringSubmatch(text)
	if match == nil {
		return Command{}, false, nil
	}
	cmd.Name = strings.ToLower(match[1])
	cmd.Args, err = shlex.Split(match[2])
	if err != nil {
		return cmd, true, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if cmd.Args == nil {
		cmd.Args = []string{}
	}
	return cmd, true, nil
}

// Arg returns the i-th argument or an empty string.
func (c Command) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}
