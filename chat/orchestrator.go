package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"storechat/config"
	"storechat/mcp"
	"storechat/model"
)

// Generator produces a completion for a message list. *provider.Registry
// satisfies it; tests substitute a mock.
type Generator interface {
	Generate(ctx context.Context, messages []model.Message, tools []mcptypes.Tool) (*model.Response, error)
}

// ToolClient is the tool-server surface the orchestrator drives.
// *mcp.Client satisfies it.
type ToolClient interface {
	IsConnected() bool
	Connect(ctx context.Context) error
	ListTools(ctx context.Context) []mcptypes.Tool
	CallTool(ctx context.Context, call model.ToolCall) (*mcp.ToolResult, error)
}

// TurnResult is the outcome of one user turn.
type TurnResult struct {
	Answer    string
	SessionID string
}

// SessionSummary is the lightweight session view exposed to callers.
type SessionSummary struct {
	MessageCount    int
	HasSystemPrompt bool
	LastActivity    time.Time
}

const apologyAnswer = "I'm sorry, I ran into a problem while processing that. Please try again in a moment."

// Orchestrator owns per-session conversation state and drives the
// request, tool-call loop, response cycle against the active provider.
// Turns for one session are serialized; different sessions run
// concurrently.
type Orchestrator struct {
	store     *Store
	generator Generator
	tools     ToolClient

	storeName    string
	customPrompt string
}

// New wires the orchestrator. The store is passed by reference so its
// lifecycle (and test isolation) stays with the caller.
func New(store *Store, generator Generator, tools ToolClient, cfg *config.Config) *Orchestrator {
	return &Orchestrator{
		store:        store,
		generator:    generator,
		tools:        tools,
		storeName:    cfg.StoreName,
		customPrompt: cfg.DefaultSystemPrompt,
	}
}

// SendTurn processes one user utterance for a session (created lazily when
// sessionID is empty or unknown) and returns the answer. It always returns
// a textual answer: provider and tool failures degrade to fallbacks or an
// apology, never to a lost session.
func (o *Orchestrator) SendTurn(ctx context.Context, sessionID, utterance string) (*TurnResult, error) {
	sess := o.store.getOrCreate(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	// A pending terms gate consumes this turn as a yes/no answer.
	if sess.PendingInterrupt != nil && sess.PendingInterrupt.WaitingForAcceptance {
		return o.handleTermsDecision(ctx, sess, utterance), nil
	}

	if isOrderInitiation(utterance) && (sess.OrderFlow == nil || !sess.OrderFlow.IsActive) {
		sess.OrderFlow = newOrderFlow()
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Chat] Session %s: order flow started at step %s", sess.ID, sess.OrderFlow.CurrentStep)
		}
	}

	o.refreshSystemPrompt(sess)
	sess.appendMessage(model.NewUserMessage(utterance), o.store.historyCap)

	toolDefs := o.ensureTools(ctx)

	resp, err := o.generator.Generate(ctx, o.requestMessages(sess), toolDefs)
	if err != nil {
		// The registry already exhausted fallback and rule-based paths;
		// keep the session alive and apologize.
		sess.appendMessage(model.NewAssistantMessage(apologyAnswer), o.store.historyCap)
		return &TurnResult{Answer: apologyAnswer, SessionID: sess.ID}, nil
	}

	answer := resp.Content
	if len(resp.ToolCalls) > 0 {
		answer = o.runToolRound(ctx, sess, resp)
	}

	sess.appendMessage(model.NewAssistantMessage(answer), o.store.historyCap)
	return &TurnResult{Answer: answer, SessionID: sess.ID}, nil
}

// runToolRound executes the tool calls from an assistant response, folds
// the results into history, and performs the single follow-up provider
// round for the final natural-language answer. Tool calls run concurrently;
// a per-call failure becomes a synthetic error result instead of aborting
// the batch.
func (o *Orchestrator) runToolRound(ctx context.Context, sess *Session, resp *model.Response) string {
	assistantMsg := model.NewAssistantMessage(resp.Content)
	assistantMsg.ToolCalls = resp.ToolCalls
	sess.appendMessage(assistantMsg, o.store.historyCap)

	type outcome struct {
		text    string
		isError bool
	}
	outcomes := make([]outcome, len(resp.ToolCalls))

	var wg sync.WaitGroup
	for i, call := range resp.ToolCalls {
		wg.Add(1)
		go func(i int, call model.ToolCall) {
			defer wg.Done()
			result, err := o.tools.CallTool(ctx, call)
			if err != nil {
				outcomes[i] = outcome{
					text:    fmt.Sprintf("Tool %s failed: %v", call.Name, err),
					isError: true,
				}
				return
			}
			outcomes[i] = outcome{text: result.Text, isError: result.IsError}
		}(i, call)
	}
	wg.Wait()

	for i, call := range resp.ToolCalls {
		sess.appendMessage(model.NewToolMessage(call.ID, outcomes[i].text), o.store.historyCap)

		// A terms/conditions failure on an order-placement tool raises the
		// acceptance gate; the decision happens on the next turn.
		if outcomes[i].isError && mcp.IsOrderPlacementTool(call.Name) && isTermsConditionsError(outcomes[i].text) {
			sess.PendingInterrupt = &PendingInterrupt{
				OriginalToolCall:     call,
				WaitingForAcceptance: true,
				TermsMessage:         outcomes[i].text,
			}
			if config.DebugLog != nil {
				config.DebugLog.Printf("[Chat] Session %s: terms acceptance gate raised by %s", sess.ID, call.Name)
			}
		}
	}

	// One follow-up round only; tools are withheld so the model cannot
	// recurse into another batch.
	followUp, err := o.generator.Generate(ctx, o.requestMessages(sess), nil)
	if err != nil {
		return apologyAnswer
	}
	return followUp.Content
}

// handleTermsDecision consumes a turn as the accept/decline answer to a
// pending terms gate. The interrupt is cleared unconditionally; on accept
// the original tool call is retried with termsChecked=true and the result
// returned directly, with no further model round-trip.
func (o *Orchestrator) handleTermsDecision(ctx context.Context, sess *Session, utterance string) *TurnResult {
	interrupt := sess.PendingInterrupt
	sess.PendingInterrupt = nil

	sess.appendMessage(model.NewUserMessage(utterance), o.store.historyCap)

	var answer string
	if classifyAcceptance(utterance) {
		o.ensureTools(ctx)

		retry := interrupt.OriginalToolCall
		retry.Arguments = withTermsChecked(retry.Arguments)

		result, err := o.tools.CallTool(ctx, retry)
		switch {
		case err != nil:
			answer = fmt.Sprintf("I tried to place the order again but ran into a problem: %v. Please try again in a moment.", err)
		case result.IsError:
			answer = "The order could not be placed: " + result.Text
		default:
			answer = result.Text
		}
	} else {
		answer = termsDeclinedAnswer
	}

	sess.appendMessage(model.NewAssistantMessage(answer), o.store.historyCap)
	return &TurnResult{Answer: answer, SessionID: sess.ID}
}

// withTermsChecked re-encodes the original tool call arguments with
// termsChecked=true added. The rest of the arguments are reused exactly as
// first issued; see the design notes for the known staleness gap.
func withTermsChecked(raw string) string {
	args := make(map[string]any)
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			args = make(map[string]any)
		}
	}
	args["termsChecked"] = true

	encoded, err := json.Marshal(args)
	if err != nil {
		return raw
	}
	return string(encoded)
}

// ensureTools makes sure the tool connection is healthy and returns the
// current tool definitions. Every failure path reports zero tools rather
// than an error; a turn without tools is still a valid turn.
func (o *Orchestrator) ensureTools(ctx context.Context) []mcptypes.Tool {
	if o.tools == nil {
		return nil
	}
	if !o.tools.IsConnected() {
		if err := o.tools.Connect(ctx); err != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[Chat] Tool server reconnect failed: %v", err)
			}
			return nil
		}
	}
	return o.tools.ListTools(ctx)
}

// requestMessages builds the outgoing message list for one provider call:
// the session history plus, while an order flow is active, an ephemeral
// system message describing the flow state. The ephemeral message is not
// persisted.
func (o *Orchestrator) requestMessages(sess *Session) []model.Message {
	messages := make([]model.Message, len(sess.History))
	copy(messages, sess.History)

	if sess.OrderFlow != nil && sess.OrderFlow.IsActive {
		messages = append(messages, buildOrderFlowContext(sess.OrderFlow))
	}
	return messages
}

// refreshSystemPrompt rebuilds the grounding system prompt with live
// context, inserting it on a session's first turn and updating it in place
// afterwards.
func (o *Orchestrator) refreshSystemPrompt(sess *Session) {
	prompt := buildSystemPrompt(o.storeName, o.customPrompt)

	for i := range sess.History {
		if sess.History[i].Role == model.RoleSystem {
			sess.History[i].Content = prompt
			return
		}
	}
	sess.appendMessage(model.NewSystemMessage(prompt), o.store.historyCap)
}
