// Copyright 2025 The KubeChat Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package conversations keeps per-conversation message history and the
// accumulated command audit trail, in memory, across agent turns.
package conversations

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/kubechat-dev/kubechat/pkg/api"
)

// ErrTurnInFlight is returned by BeginTurn when a turn is already running
// for the conversation. Callers map it to a conflict response.
var ErrTurnInFlight = errors.New("a turn is already in flight for this conversation")

// Conversation is the durable (in-memory) state of one conversation.
// Messages is append-only for the lifetime of the conversation; it is the
// exact context window sent to the model on every turn. CommandsExecuted
// accumulates across turns as an audit trail.
//
// A Conversation is only safe to mutate between BeginTurn and EndTurn.
type Conversation struct {
	ID               string
	Messages         []api.Message
	CommandsExecuted []string
}

// Append adds a message to the history.
func (c *Conversation) Append(role api.Role, content string) {
	c.Messages = append(c.Messages, api.Message{Role: role, Content: content})
}

// RecordCommand adds a command to the conversation's audit trail.
func (c *Conversation) RecordCommand(command string) {
	c.CommandsExecuted = append(c.CommandsExecuted, command)
}

// Store maps conversation ids to their state.
type Store interface {
	// GetOrCreate returns the conversation for id, creating it (with a
	// generated id when id is empty or unknown-and-empty) on first reference.
	GetOrCreate(id string) *Conversation

	// Delete removes a conversation. It is idempotent and reports whether an
	// entry existed.
	Delete(id string) bool

	// BeginTurn admits a single in-flight turn per conversation id.
	BeginTurn(id string) error

	// EndTurn releases the admission taken by BeginTurn.
	EndTurn(id string)

	// Len reports the number of stored conversations.
	Len() int
}

type entry struct {
	conv     *Conversation
	lastUsed time.Time
	inFlight bool
}

// memoryStore is a mutex-guarded map with LRU eviction beyond a fixed cap.
type memoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry
	cap     int
	now     func() time.Time
}

// NewMemoryStore creates an in-memory store bounded at cap conversations.
// A non-positive cap disables eviction.
func NewMemoryStore(cap int) Store {
	return &memoryStore{
		entries: make(map[string]*entry),
		cap:     cap,
		now:     time.Now,
	}
}

func (s *memoryStore) GetOrCreate(id string) *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if e, ok := s.entries[id]; ok {
			e.lastUsed = s.now()
			return e.conv
		}
	}

	if id == "" {
		id = uuid.NewString()
	}
	s.evictLocked()
	e := &entry{
		conv:     &Conversation{ID: id},
		lastUsed: s.now(),
	}
	s.entries[id] = e
	return e.conv
}

func (s *memoryStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.entries[id]
	delete(s.entries, id)
	return ok
}

func (s *memoryStore) BeginTurn(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		// A turn on an evicted or never-created id recreates the entry so the
		// admission bookkeeping has somewhere to live.
		e = &entry{conv: &Conversation{ID: id}}
		s.entries[id] = e
	}
	if e.inFlight {
		return ErrTurnInFlight
	}
	e.inFlight = true
	e.lastUsed = s.now()
	return nil
}

func (s *memoryStore) EndTurn(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[id]; ok {
		e.inFlight = false
		e.lastUsed = s.now()
	}
}

func (s *memoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// evictLocked drops least-recently-used conversations until there is room
// for one more entry. In-flight conversations are never evicted.
func (s *memoryStore) evictLocked() {
	if s.cap <= 0 {
		return
	}
	for len(s.entries) >= s.cap {
		var oldestID string
		var oldest time.Time
		for id, e := range s.entries {
			if e.inFlight {
				continue
			}
			if oldestID == "" || e.lastUsed.Before(oldest) {
				oldestID = id
				oldest = e.lastUsed
			}
		}
		if oldestID == "" {
			return
		}
		klog.V(2).Infof("evicting conversation %s (store at capacity %d)", oldestID, s.cap)
		delete(s.entries, oldestID)
	}
}
