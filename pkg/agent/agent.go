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

// Package agent implements the command loop that turns a user question into
// a sequence of model calls, command executions, and URL fetches, ending in
// a single answer.
package agent

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"k8s.io/klog/v2"

	"github.com/kubechat-dev/kubechat/pkg/api"
	"github.com/kubechat-dev/kubechat/pkg/conversations"
	"github.com/kubechat-dev/kubechat/pkg/journal"
)

//go:embed systemprompt_template_default.txt
var defaultSystemPromptTemplate string

// MaxStepsMessage is returned when a turn hits the iteration ceiling.
const MaxStepsMessage = "I've reached the maximum number of steps for this request. Please try a simpler question."

const resultsHeader = "Command execution results:\n\n"
const resultsSeparator = "\n\n---\n\n"

// ModelClient produces a completion for a conversation.
type ModelClient interface {
	Complete(ctx context.Context, req api.ChatCompletionRequest) (*api.ChatCompletionResponse, error)
}

// CommandRunner runs a single allow-listed command line.
type CommandRunner interface {
	Run(ctx context.Context, command string, timeout time.Duration) (*api.CommandResult, error)
}

// URLFetcher retrieves the content of a URL as display text.
type URLFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// EventStream yields the events of one turn in order. The final event is
// always terminal (response or error); yield returning false stops the turn.
type EventStream func(yield func(api.TurnEvent) bool)

// Options configures an Agent.
type Options struct {
	// Model overrides the gateway's default model when non-empty.
	Model string
	// MaxIterations caps the number of model calls per turn.
	MaxIterations int
	// CommandTimeout bounds each individual command execution.
	CommandTimeout time.Duration
	// Tools lists the command-line tools the model is told it may use.
	Tools []string
}

// Agent drives the loop for one service instance. It is stateless across
// turns; conversation history lives in the conversations store.
type Agent struct {
	model   ModelClient
	runner  CommandRunner
	fetcher URLFetcher
	journal journal.Recorder

	systemPrompt   string
	modelName      string
	maxIterations  int
	commandTimeout time.Duration
}

// New builds an Agent. recorder may be nil, in which case nothing is
// journaled.
func New(model ModelClient, runner CommandRunner, fetcher URLFetcher, recorder journal.Recorder, opts Options) (*Agent, error) {
	if opts.MaxIterations <= 0 {
		return nil, fmt.Errorf("max iterations must be positive, got %d", opts.MaxIterations)
	}
	tools := opts.Tools
	if len(tools) == 0 {
		tools = []string{"kubectl", "helm"}
	}
	prompt, err := renderSystemPrompt(tools, opts.MaxIterations)
	if err != nil {
		return nil, err
	}
	if recorder == nil {
		recorder = journal.NopRecorder{}
	}
	return &Agent{
		model:          model,
		runner:         runner,
		fetcher:        fetcher,
		journal:        recorder,
		systemPrompt:   prompt,
		modelName:      opts.Model,
		maxIterations:  opts.MaxIterations,
		commandTimeout: opts.CommandTimeout,
	}, nil
}

func renderSystemPrompt(tools []string, maxIterations int) (string, error) {
	tmpl, err := template.New("systemprompt").Parse(defaultSystemPromptTemplate)
	if err != nil {
		return "", fmt.Errorf("parsing system prompt template: %w", err)
	}
	var buf bytes.Buffer
	data := struct {
		Tools         string
		MaxIterations int
	}{
		Tools:         strings.Join(tools, ", "),
		MaxIterations: maxIterations,
	}
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering system prompt: %w", err)
	}
	return buf.String(), nil
}

// Turn runs one full turn synchronously and returns the terminal outcome.
// It never returns an error; failures are reported in the response with
// Error set.
func (a *Agent) Turn(ctx context.Context, conv *conversations.Conversation, message string) api.ChatResponse {
	var last api.TurnEvent
	a.StreamTurn(ctx, conv, message)(func(ev api.TurnEvent) bool {
		last = ev
		return true
	})
	return api.ChatResponse{
		ConversationID:   conv.ID,
		Response:         last.Message,
		CommandsExecuted: last.CommandsExecuted,
		Error:            last.Type == api.EventError,
	}
}

// StreamTurn runs one turn as an event stream. The user message is appended
// to the conversation before the first model call; each executed command and
// its rendered output are appended as the loop progresses, so the
// conversation only ever grows.
func (a *Agent) StreamTurn(ctx context.Context, conv *conversations.Conversation, message string) EventStream {
	return func(yield func(api.TurnEvent) bool) {
		conv.Append(api.RoleUser, message)
		a.record(ctx, conv.ID, journal.EventTurnStarted, map[string]any{"message": message})

		var executed []string
		terminal := func(ev api.TurnEvent) {
			ev.ConversationID = conv.ID
			ev.CommandsExecuted = executed
			a.record(ctx, conv.ID, journal.EventTurnFinished, map[string]any{
				"type":     string(ev.Type),
				"commands": len(executed),
			})
			yield(ev)
		}

		for iteration := 0; iteration < a.maxIterations; iteration++ {
			if !yield(api.TurnEvent{Type: api.EventThinking, ConversationID: conv.ID}) {
				return
			}

			resp, err := a.model.Complete(ctx, api.ChatCompletionRequest{
				Messages: conv.Messages,
				Model:    a.modelName,
				System:   a.systemPrompt,
			})
			a.record(ctx, conv.ID, journal.EventModelCalled, map[string]any{"iteration": iteration, "ok": err == nil})
			if err != nil {
				klog.Errorf("model call failed (conversation %s): %v", conv.ID, err)
				terminal(api.TurnEvent{
					Type:    api.EventError,
					Message: fmt.Sprintf("Error communicating with the model: %v", err),
				})
				return
			}

			action := ParseAction(resp.Content)
			klog.V(2).Infof("conversation %s iteration %d: action=%s", conv.ID, iteration, action.Kind)

			switch action.Kind {
			case ActionExecute:
				if len(action.Commands) == 0 {
					// An execute action with nothing to run is the model's
					// way of answering; treat the message as the response.
					conv.Append(api.RoleAssistant, action.Raw)
					response := action.Message
					if response == "" {
						response = action.Raw
					}
					terminal(api.TurnEvent{Type: api.EventResponse, Message: response})
					return
				}
				results := make([]string, 0, len(action.Commands))
				for _, command := range action.Commands {
					if !yield(api.TurnEvent{Type: api.EventExecuting, Command: command, ConversationID: conv.ID}) {
						return
					}
					rendered, ran := a.runCommand(ctx, conv.ID, command)
					if ran {
						executed = append(executed, command)
						conv.RecordCommand(command)
					}
					results = append(results, rendered)
					if !yield(api.TurnEvent{Type: api.EventResult, Command: command, Output: rendered, ConversationID: conv.ID}) {
						return
					}
				}
				conv.Append(api.RoleAssistant, action.Raw)
				conv.Append(api.RoleUser, resultsHeader+strings.Join(results, resultsSeparator))

			case ActionFetch:
				if action.URL == "" {
					terminal(api.TurnEvent{
						Type:    api.EventError,
						Message: "The model requested a URL fetch without providing a URL.",
					})
					return
				}
				if !yield(api.TurnEvent{Type: api.EventExecuting, Message: "Fetching " + action.URL, ConversationID: conv.ID}) {
					return
				}
				content := a.fetchURL(ctx, conv.ID, action.URL)
				if !yield(api.TurnEvent{Type: api.EventResult, Output: content, ConversationID: conv.ID}) {
					return
				}
				conv.Append(api.RoleAssistant, action.Raw)
				conv.Append(api.RoleUser, "URL fetch result:\n\n"+content)

			case ActionRespond:
				conv.Append(api.RoleAssistant, action.Message)
				terminal(api.TurnEvent{Type: api.EventResponse, Message: action.Message})
				return

			default:
				conv.Append(api.RoleAssistant, action.Raw)
				terminal(api.TurnEvent{Type: api.EventResponse, Message: action.Raw})
				return
			}
		}

		klog.Warningf("conversation %s hit the iteration ceiling (%d)", conv.ID, a.maxIterations)
		terminal(api.TurnEvent{Type: api.EventError, Message: MaxStepsMessage})
	}
}

// runCommand executes one command and renders its outcome as context text.
// ran reports whether the executor accepted the command; rejected or
// unreachable commands still produce text so the model can adjust.
func (a *Agent) runCommand(ctx context.Context, conversationID, command string) (rendered string, ran bool) {
	result, err := a.runner.Run(ctx, command, a.commandTimeout)
	if err != nil {
		klog.Warningf("command %q failed to execute: %v", command, err)
		a.record(ctx, conversationID, journal.EventCommandRun, map[string]any{"command": command, "error": err.Error()})
		return fmt.Sprintf("Command: %s\nError: Failed to execute - %v", command, err), false
	}
	a.record(ctx, conversationID, journal.EventCommandRun, map[string]any{"command": command, "return_code": result.ReturnCode})
	if result.ReturnCode == 0 {
		output := result.Stdout
		if output == "" {
			output = "(no output)"
		}
		return fmt.Sprintf("Command: %s\nOutput:\n%s", command, output), true
	}
	detail := result.Stderr
	if detail == "" {
		detail = result.Stdout
	}
	if detail == "" {
		detail = "(no output)"
	}
	return fmt.Sprintf("Command: %s\nError (exit code %d):\n%s", command, result.ReturnCode, detail), true
}

// fetchURL retrieves a URL, degrading failures to text the model can see.
func (a *Agent) fetchURL(ctx context.Context, conversationID, url string) string {
	content, err := a.fetcher.Fetch(ctx, url)
	if err != nil {
		klog.Warningf("fetch of %q failed: %v", url, err)
		a.record(ctx, conversationID, journal.EventURLFetched, map[string]any{"url": url, "error": err.Error()})
		return fmt.Sprintf("Error fetching %s: %v", url, err)
	}
	a.record(ctx, conversationID, journal.EventURLFetched, map[string]any{"url": url, "bytes": len(content)})
	return content
}

func (a *Agent) record(ctx context.Context, conversationID string, typ journal.EventType, payload map[string]any) {
	if err := a.journal.Write(ctx, &journal.Event{
		ConversationID: conversationID,
		Type:           typ,
		Payload:        payload,
	}); err != nil {
		klog.V(2).Infof("journal write failed: %v", err)
	}
}
