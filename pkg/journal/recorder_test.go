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

package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestFileRecorderWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")

	recorder, err := NewFileRecorder(path)
	if err != nil {
		t.Fatalf("NewFileRecorder() error = %v", err)
	}

	ctx := context.Background()
	events := []*Event{
		{ConversationID: "c1", Type: EventTurnStarted, Payload: "list pods"},
		{ConversationID: "c1", Type: EventCommandRun, Payload: "kubectl get pods"},
		{ConversationID: "c1", Type: EventTurnFinished},
	}
	for _, ev := range events {
		if err := recorder.Write(ctx, ev); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := recorder.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening journal: %v", err)
	}
	defer f.Close()

	var got []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("line is not valid JSON: %v", err)
		}
		got = append(got, ev)
	}
	if len(got) != len(events) {
		t.Fatalf("expected %d events, got %d", len(events), len(got))
	}
	for i, ev := range got {
		if ev.Type != events[i].Type {
			t.Errorf("event %d: expected type %q, got %q", i, events[i].Type, ev.Type)
		}
		if ev.SessionID == "" {
			t.Errorf("event %d: missing session id", i)
		}
		if ev.Timestamp.IsZero() {
			t.Errorf("event %d: missing timestamp", i)
		}
	}
}

func TestFileRecorderClosedWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	recorder, err := NewFileRecorder(path)
	if err != nil {
		t.Fatalf("NewFileRecorder() error = %v", err)
	}
	if err := recorder.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := recorder.Write(context.Background(), &Event{Type: EventTurnStarted}); err == nil {
		t.Fatal("expected error writing to closed recorder")
	}
}
