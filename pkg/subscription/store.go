// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package subscription

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidNickname = errors.New("nickname must be 3-10 letters, digits, '_' or '-'")
	ErrNicknameTaken   = errors.New("nickname is already taken")
	ErrNotSubscribed   = errors.New("identity is not subscribed")
	ErrFileExists      = errors.New("file already exists, overwrite not allowed")
	ErrNoPath          = errors.New("store has no backing file")
)

// Store is the durable identity -> Subscriber directory. Every mutation
// rewrites the whole backing file before returning.
type Store struct {
	mu      sync.Mutex
	path    string
	order   []string
	entries map[string]Subscriber
	log     zerolog.Logger
}

// New returns an empty store backed by path. Nothing is read or written.
func New(path string, log zerolog.Logger) *Store {
	return &Store{
		path:    path,
		entries: make(map[string]Subscriber),
		log:     log.With().Str("component", "subscriptions").Logger(),
	}
}

// Open returns a store backed by path. When loadFile is set and the file
// exists it is loaded; a file that cannot be parsed is an error.
func Open(path string, loadFile bool, log zerolog.Logger) (*Store, error) {
	s := New(path, log)
	if !loadFile {
		return s, nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		s.log.Info().Str("path", path).Msg("Subscription file not found, starting empty")
		return s, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat subscription file: %w", err)
	}
	if err := s.Load(path); err != nil {
		return nil, err
	}
	return s, nil
}

// Load replaces the store contents with the contents of path and makes it
// the backing file. On error the store is left untouched.
func (s *Store) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read subscription file: %w", err)
	}
	order, entries, err := decode(data)
	if err != nil {
		return fmt.Errorf("failed to parse subscription file %s: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.path = path
	s.order = order
	s.entries = entries
	s.log.Info().Str("path", path).Int("count", len(order)).Msg("Loaded subscriptions")
	return nil
}

// Get returns a copy of the subscriber for identity.
func (s *Store) Get(identity string) (Subscriber, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.entries[identity]
	if !ok {
		return Subscriber{}, false
	}
	return sub.clone(), true
}

// Put creates or replaces the subscriber for identity and persists.
func (s *Store) Put(identity string, sub Subscriber) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putLocked(identity, sub)
}

// Update applies fn to the subscriber for identity and persists the result
// if fn returns nil. The store is locked for the duration of fn.
func (s *Store) Update(identity string, fn func(sub *Subscriber) error) (Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.entries[identity]
	if !ok {
		return Subscriber{}, ErrNotSubscribed
	}
	next := cur.clone()
	if err := fn(&next); err != nil {
		return cur.clone(), err
	}
	if err := s.putLocked(identity, next); err != nil {
		return cur.clone(), err
	}
	return next.clone(), nil
}

// Delete removes identity and persists. Removing an unknown identity is a
// no-op that reports false and writes nothing.
func (s *Store) Delete(identity string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.entries[identity]
	if !ok {
		return false, nil
	}
	idx := slices.Index(s.order, identity)
	delete(s.entries, identity)
	s.order = slices.Delete(s.order, idx, idx+1)
	if err := s.writeLocked(s.path, true); err != nil {
		s.entries[identity] = prev
		s.order = slices.Insert(s.order, idx, identity)
		return false, err
	}
	return true, nil
}

// All returns copies of every subscriber in insertion order.
func (s *Store) All() []Subscriber {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Subscriber, 0, len(s.order))
	for _, identity := range s.order {
		out = append(out, s.entries[identity].clone())
	}
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Path returns the current backing file.
func (s *Store) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Save rewrites the backing file.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(s.path, true)
}

// SaveAs writes the store to path, which becomes the backing file. An
// existing file is only replaced when overwrite is set.
func (s *Store) SaveAs(path string, overwrite bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeLocked(path, overwrite); err != nil {
		return err
	}
	s.path = path
	return nil
}

func (s *Store) putLocked(identity string, sub Subscriber) error {
	for _, other := range s.order {
		if other != identity && s.entries[other].Nickname == sub.Nickname {
			return ErrNicknameTaken
		}
	}
	sub.Identity = identity
	prev, existed := s.entries[identity]
	s.entries[identity] = sub.clone()
	if !existed {
		s.order = append(s.order, identity)
	}
	if err := s.writeLocked(s.path, true); err != nil {
		if existed {
			s.entries[identity] = prev
		} else {
			delete(s.entries, identity)
			s.order = s.order[:len(s.order)-1]
		}
		return err
	}
	return nil
}

func (s *Store) writeLocked(path string, overwrite bool) error {
	if path == "" {
		return ErrNoPath
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrFileExists, path)
		}
	}
	data, err := s.encodeLocked()
	if err != nil {
		return fmt.Errorf("failed to encode subscriptions: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp subscription file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write subscriptions: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to write subscriptions: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace subscription file: %w", err)
	}
	s.log.Debug().Str("path", path).Int("count", len(s.order)).Msg("Saved subscriptions")
	return nil
}

// encodeLocked renders the directory as a YAML mapping keyed by identity,
// keeping insertion order.
func (s *Store) encodeLocked() ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, identity := range s.order {
		var value yaml.Node
		if err := value.Encode(s.entries[identity].clone()); err != nil {
			return nil, err
		}
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: identity},
			&value,
		)
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(data []byte) ([]string, map[string]Subscriber, error) {
	entries := make(map[string]Subscriber)
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, err
	}
	// An empty file is an empty directory.
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, entries, nil
	}
	root := doc.Content[0]
	if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
		return nil, entries, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, nil, fmt.Errorf("line %d: expected a mapping of identities", root.Line)
	}
	order := make([]string, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		if key.Kind != yaml.ScalarNode || key.Value == "" {
			return nil, nil, fmt.Errorf("line %d: invalid identity", key.Line)
		}
		if _, dup := entries[key.Value]; dup {
			return nil, nil, fmt.Errorf("line %d: duplicate identity %q", key.Line, key.Value)
		}
		var sub Subscriber
		if err := value.Decode(&sub); err != nil {
			return nil, nil, fmt.Errorf("identity %q: %w", key.Value, err)
		}
		if sub.Nickname == "" {
			return nil, nil, fmt.Errorf("identity %q: missing nickname", key.Value)
		}
		for _, prev := range order {
			if entries[prev].Nickname == sub.Nickname {
				return nil, nil, fmt.Errorf("identity %q: %w: %s", key.Value, ErrNicknameTaken, sub.Nickname)
			}
		}
		sub.Identity = key.Value
		entries[key.Value] = sub.clone()
		order = append(order, key.Value)
	}
	return order, entries, nil
}
