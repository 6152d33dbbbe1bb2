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

// Package journal records a structured audit log of the agent's turns:
// model calls, executed commands, fetches and terminal outcomes.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType classifies journal entries.
type EventType string

const (
	EventTurnStarted  EventType = "turn-started"
	EventModelCalled  EventType = "model-called"
	EventCommandRun   EventType = "command-run"
	EventURLFetched   EventType = "url-fetched"
	EventTurnFinished EventType = "turn-finished"
)

// Event is one journal entry.
type Event struct {
	Timestamp      time.Time `json:"timestamp"`
	SessionID      string    `json:"session_id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Type           EventType `json:"type"`
	Payload        any       `json:"payload,omitempty"`
}

// Recorder is an interface for recording a structured log of the agent's
// actions and observations.
type Recorder interface {
	io.Closer

	// Write will add an event to the recorder.
	Write(ctx context.Context, event *Event) error
}

// FileRecorder appends events to a file as JSON lines.
type FileRecorder struct {
	mu        sync.Mutex
	f         *os.File
	sessionID string
}

// NewFileRecorder creates a FileRecorder appending to the given path.
func NewFileRecorder(path string) (*FileRecorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening journal file: %w", err)
	}
	return &FileRecorder{
		f:         f,
		sessionID: uuid.NewString(),
	}, nil
}

// Write appends one event as a JSON line.
func (r *FileRecorder) Write(ctx context.Context, event *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.f == nil {
		return fmt.Errorf("recorder closed")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.SessionID = r.sessionID

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling journal event: %w", err)
	}
	if _, err := r.f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("writing journal event: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}

// NopRecorder discards all events.
type NopRecorder struct{}

func (NopRecorder) Write(ctx context.Context, event *Event) error { return nil }
func (NopRecorder) Close() error                                  { return nil }
