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

package agent

import (
	"encoding/json"
	"strings"
)

// ActionKind tags the variant of an Action.
type ActionKind string

const (
	// ActionExecute asks for one or more commands to be run.
	ActionExecute ActionKind = "execute"
	// ActionFetch asks for a URL's content.
	ActionFetch ActionKind = "fetch"
	// ActionRespond carries the terminal answer for the turn.
	ActionRespond ActionKind = "respond"
	// ActionUnknown is the fallback for output that parses as none of the
	// above; it is handled exactly like ActionRespond, carrying the raw text.
	ActionUnknown ActionKind = "unknown"
)

// Action is the structured intent parsed from one model turn. Exactly one
// variant is active, indicated by Kind. Raw always holds the model's
// original text verbatim.
type Action struct {
	Kind     ActionKind
	Commands []string
	URL      string
	Message  string
	Raw      string
}

type wireAction struct {
	Action   string   `json:"action"`
	Commands []string `json:"commands"`
	URL      string   `json:"url"`
	Message  string   `json:"message"`
}

// ParseAction parses a model response into an Action. Parsing is
// best-effort and never fails: malformed or unrecognized output degrades to
// ActionUnknown carrying the original text, so every loop iteration yields
// usable user-facing text.
func ParseAction(response string) Action {
	raw := strings.TrimSpace(response)
	candidate := extractFencedBlock(raw)

	var wire wireAction
	if err := json.Unmarshal([]byte(candidate), &wire); err != nil {
		return Action{Kind: ActionUnknown, Message: raw, Raw: raw}
	}

	switch wire.Action {
	case "execute":
		return Action{Kind: ActionExecute, Commands: wire.Commands, Message: wire.Message, Raw: raw}
	case "fetch":
		return Action{Kind: ActionFetch, URL: wire.URL, Message: wire.Message, Raw: raw}
	case "respond":
		message := wire.Message
		if message == "" {
			message = raw
		}
		return Action{Kind: ActionRespond, Message: message, Raw: raw}
	default:
		return Action{Kind: ActionUnknown, Message: raw, Raw: raw}
	}
}

// extractFencedBlock returns the innermost content of a markdown code fence
// (optionally tagged json), or s unchanged when no complete fence is found.
func extractFencedBlock(s string) string {
	const fence = "```"

	first := strings.Index(s, fence)
	if first < 0 {
		return s
	}
	last := strings.LastIndex(s, fence)
	if last == first {
		return s
	}

	inner := s[first+len(fence) : last]
	inner = strings.TrimPrefix(inner, "json")
	return strings.TrimSpace(inner)
}
