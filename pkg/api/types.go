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

// Package api holds the wire contracts shared by the kubechat services.
package api

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single role-tagged entry in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest is the request accepted by the LLM gateway.
type ChatCompletionRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
}

// Usage reports token consumption for a single completion.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens,omitempty"`
}

// ChatCompletionResponse is the response produced by the LLM gateway.
type ChatCompletionResponse struct {
	Content string `json:"content"`
	Model   string `json:"model"`
	Usage   Usage  `json:"usage"`
}

// ExecuteRequest asks the executor service to run a single command line.
type ExecuteRequest struct {
	Command        string `json:"command"`
	TimeoutSeconds int    `json:"timeout"`
}

// TimedOutReturnCode is the sentinel return code reported when a command
// exceeds its timeout.
const TimedOutReturnCode = -1

// CommandResult is the outcome of a single command execution. A failing
// command is encoded in ReturnCode, never as a transport error.
type CommandResult struct {
	Stdout              string `json:"stdout"`
	Stderr              string `json:"stderr"`
	ReturnCode          int    `json:"return_code"`
	Command             string `json:"command"`
	ExecutionTimeMillis int64  `json:"execution_time_ms"`
}

// ChatRequest is one user turn submitted to the agent service.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ChatResponse is the terminal outcome of one agent turn. The shape is
// identical for success and failure; Error distinguishes the two.
type ChatResponse struct {
	ConversationID   string   `json:"conversation_id"`
	Response         string   `json:"response"`
	CommandsExecuted []string `json:"commands_executed"`
	Error            bool     `json:"error"`
}

// EventType enumerates the lifecycle events emitted during a streamed turn.
type EventType string

const (
	EventThinking  EventType = "thinking"
	EventExecuting EventType = "executing"
	EventResult    EventType = "result"
	EventResponse  EventType = "response"
	EventError     EventType = "error"
)

// TurnEvent is one element of the ordered event sequence produced by a turn.
// A stream is always terminated by a response or error event.
type TurnEvent struct {
	Type             EventType `json:"type"`
	Message          string    `json:"message,omitempty"`
	Command          string    `json:"command,omitempty"`
	Output           string    `json:"output,omitempty"`
	ConversationID   string    `json:"conversation_id,omitempty"`
	CommandsExecuted []string  `json:"commands_executed,omitempty"`
}

// Terminal reports whether the event ends the stream.
func (e TurnEvent) Terminal() bool {
	return e.Type == EventResponse || e.Type == EventError
}

// ErrorResponse is the JSON body returned for HTTP-level failures.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
