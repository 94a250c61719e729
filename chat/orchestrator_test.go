package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"storechat/config"
	"storechat/mcp"
	"storechat/model"
)

// scriptGen returns scripted responses in order and records every request.
type scriptGen struct {
	mu        sync.Mutex
	responses []*model.Response
	errs      []error
	requests  [][]model.Message
	toolsSeen [][]mcptypes.Tool
	next      int
}

func (g *scriptGen) Generate(_ context.Context, messages []model.Message, tools []mcptypes.Tool) (*model.Response, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.requests = append(g.requests, append([]model.Message(nil), messages...))
	g.toolsSeen = append(g.toolsSeen, tools)

	i := g.next
	g.next++
	if i < len(g.errs) && g.errs[i] != nil {
		return nil, g.errs[i]
	}
	if i < len(g.responses) {
		return g.responses[i], nil
	}
	return &model.Response{Content: "fallthrough"}, nil
}

func (g *scriptGen) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.next
}

// fakeTools implements ToolClient with scripted per-tool results.
type fakeTools struct {
	mu         sync.Mutex
	connected  bool
	connectErr error
	tools      []mcptypes.Tool
	results    map[string]*mcp.ToolResult
	errs       map[string]error
	calls      []model.ToolCall
}

func (f *fakeTools) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTools) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeTools) ListTools(context.Context) []mcptypes.Tool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tools
}

func (f *fakeTools) CallTool(_ context.Context, call model.ToolCall) (*mcp.ToolResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if err, ok := f.errs[call.Name]; ok {
		return nil, err
	}
	if res, ok := f.results[call.Name]; ok {
		return res, nil
	}
	return &mcp.ToolResult{Text: "ok"}, nil
}

func (f *fakeTools) recordedCalls() []model.ToolCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.ToolCall(nil), f.calls...)
}

func testSessionConfig() config.SessionConfig {
	return config.SessionConfig{HistoryCap: 20, TimeoutMinutes: 30, CleanupIntervalMinutes: 5}
}

func newTestOrchestrator(t *testing.T, gen Generator, tools ToolClient) *Orchestrator {
	t.Helper()
	store := NewStore(testSessionConfig())
	t.Cleanup(store.Close)
	return New(store, gen, tools, &config.Config{StoreName: "Acme Outdoors"})
}

func searchTool() mcptypes.Tool {
	return mcptypes.Tool{Name: "searchProducts", Description: "Search the catalog"}
}

func TestSendTurnSimpleAnswer(t *testing.T) {
	gen := &scriptGen{responses: []*model.Response{{Content: "Hi! How can I help?"}}}
	tools := &fakeTools{connected: true}
	o := newTestOrchestrator(t, gen, tools)

	result, err := o.SendTurn(context.Background(), "", "hello")
	if err != nil {
		t.Fatalf("SendTurn() error = %v", err)
	}
	if result.Answer != "Hi! How can I help?" {
		t.Errorf("Answer = %q", result.Answer)
	}
	if result.SessionID == "" {
		t.Error("SessionID is empty")
	}

	summary, ok := o.GetSessionSummary(result.SessionID)
	if !ok {
		t.Fatal("session not found after turn")
	}
	if !summary.HasSystemPrompt {
		t.Error("session is missing the system prompt")
	}
	if summary.MessageCount != 3 {
		t.Errorf("MessageCount = %d, want 3 (system, user, assistant)", summary.MessageCount)
	}
}

func TestSendTurnReusesSession(t *testing.T) {
	gen := &scriptGen{responses: []*model.Response{{Content: "one"}, {Content: "two"}}}
	o := newTestOrchestrator(t, gen, &fakeTools{connected: true})

	first, err := o.SendTurn(context.Background(), "", "hello")
	if err != nil {
		t.Fatalf("SendTurn() error = %v", err)
	}
	second, err := o.SendTurn(context.Background(), first.SessionID, "and again")
	if err != nil {
		t.Fatalf("SendTurn() error = %v", err)
	}
	if second.SessionID != first.SessionID {
		t.Errorf("session id changed: %q -> %q", first.SessionID, second.SessionID)
	}

	// The second request must carry the first exchange.
	lastReq := gen.requests[len(gen.requests)-1]
	var sawFirstAnswer bool
	for _, m := range lastReq {
		if m.Role == model.RoleAssistant && m.Content == "one" {
			sawFirstAnswer = true
		}
	}
	if !sawFirstAnswer {
		t.Error("second request is missing the first assistant answer")
	}
}

func TestSendTurnToolRound(t *testing.T) {
	gen := &scriptGen{responses: []*model.Response{
		{ToolCalls: []model.ToolCall{{ID: "call_1", Name: "searchProducts", Arguments: `{"query":"tent"}`}}},
		{Content: "I found 3 tents for you."},
	}}
	tools := &fakeTools{
		connected: true,
		tools:     []mcptypes.Tool{searchTool()},
		results:   map[string]*mcp.ToolResult{"searchProducts": {Text: "3 products: ..."}},
	}
	o := newTestOrchestrator(t, gen, tools)

	result, err := o.SendTurn(context.Background(), "", "do you have tents?")
	if err != nil {
		t.Fatalf("SendTurn() error = %v", err)
	}
	if result.Answer != "I found 3 tents for you." {
		t.Errorf("Answer = %q", result.Answer)
	}

	calls := tools.recordedCalls()
	if len(calls) != 1 || calls[0].Name != "searchProducts" {
		t.Fatalf("tool calls = %v", calls)
	}

	if gen.callCount() != 2 {
		t.Fatalf("generator called %d times, want 2", gen.callCount())
	}
	if gen.toolsSeen[0] == nil {
		t.Error("first round carried no tool definitions")
	}
	if gen.toolsSeen[1] != nil {
		t.Error("follow-up round carried tool definitions, want none")
	}

	// History carries the tool result for the follow-up.
	followUpReq := gen.requests[1]
	var sawToolResult bool
	for _, m := range followUpReq {
		if m.Role == model.RoleTool && strings.Contains(m.Content, "3 products") {
			sawToolResult = true
		}
	}
	if !sawToolResult {
		t.Error("follow-up request is missing the tool result message")
	}
}

func TestSendTurnToolBatchPartialFailure(t *testing.T) {
	gen := &scriptGen{responses: []*model.Response{
		{ToolCalls: []model.ToolCall{
			{ID: "call_1", Name: "searchProducts", Arguments: "{}"},
			{ID: "call_2", Name: "getStoreHours", Arguments: "{}"},
		}},
		{Content: "Here is what I found."},
	}}
	tools := &fakeTools{
		connected: true,
		results:   map[string]*mcp.ToolResult{"searchProducts": {Text: "2 products"}},
		errs:      map[string]error{"getStoreHours": errors.New("connection reset")},
	}
	o := newTestOrchestrator(t, gen, tools)

	result, err := o.SendTurn(context.Background(), "", "tents and opening hours please")
	if err != nil {
		t.Fatalf("SendTurn() error = %v", err)
	}
	if result.Answer != "Here is what I found." {
		t.Errorf("Answer = %q", result.Answer)
	}
	if len(tools.recordedCalls()) != 2 {
		t.Fatalf("tool calls = %d, want 2", len(tools.recordedCalls()))
	}

	// The failed call became a synthetic error result, in order.
	followUpReq := gen.requests[1]
	var toolTexts []string
	for _, m := range followUpReq {
		if m.Role == model.RoleTool {
			toolTexts = append(toolTexts, m.Content)
		}
	}
	if len(toolTexts) != 2 {
		t.Fatalf("tool result messages = %d, want 2", len(toolTexts))
	}
	if toolTexts[0] != "2 products" {
		t.Errorf("first tool result = %q", toolTexts[0])
	}
	if !strings.Contains(toolTexts[1], "getStoreHours failed") {
		t.Errorf("second tool result = %q, want synthetic failure text", toolTexts[1])
	}

	sess := o.store.get(result.SessionID)
	if sess.PendingInterrupt != nil {
		t.Error("plain tool failure must not raise the terms gate")
	}
}

func TestSendTurnProviderFailureKeepsSession(t *testing.T) {
	gen := &scriptGen{
		errs:      []error{errors.New("everything is down")},
		responses: []*model.Response{nil, {Content: "back again"}},
	}
	o := newTestOrchestrator(t, gen, &fakeTools{connected: true})

	result, err := o.SendTurn(context.Background(), "", "hello")
	if err != nil {
		t.Fatalf("SendTurn() error = %v", err)
	}
	if result.Answer != apologyAnswer {
		t.Errorf("Answer = %q, want apology", result.Answer)
	}

	// The session survives and the next turn works.
	second, err := o.SendTurn(context.Background(), result.SessionID, "still there?")
	if err != nil {
		t.Fatalf("second SendTurn() error = %v", err)
	}
	if second.Answer != "back again" {
		t.Errorf("second Answer = %q", second.Answer)
	}
	if second.SessionID != result.SessionID {
		t.Error("session id changed after provider failure")
	}
}

func TestTermsGateRaisedAndAccepted(t *testing.T) {
	gen := &scriptGen{responses: []*model.Response{
		{ToolCalls: []model.ToolCall{{ID: "call_1", Name: "placeOrder", Arguments: `{"cartId":"c1"}`}}},
		{Content: "Before I can place the order you need to accept the terms and conditions."},
	}}
	tools := &fakeTools{
		connected: true,
		results: map[string]*mcp.ToolResult{
			"placeOrder": {Text: "Terms and Conditions must be accepted first", IsError: true},
		},
	}
	o := newTestOrchestrator(t, gen, tools)

	result, err := o.SendTurn(context.Background(), "", "place my order")
	if err != nil {
		t.Fatalf("SendTurn() error = %v", err)
	}

	sess := o.store.get(result.SessionID)
	if sess.PendingInterrupt == nil || !sess.PendingInterrupt.WaitingForAcceptance {
		t.Fatal("terms gate not raised")
	}
	if sess.PendingInterrupt.OriginalToolCall.Name != "placeOrder" {
		t.Errorf("original call = %q", sess.PendingInterrupt.OriginalToolCall.Name)
	}

	// Accept: the original call is retried with termsChecked, no model round.
	tools.mu.Lock()
	tools.results["placeOrder"] = &mcp.ToolResult{Text: "Order 0001 placed."}
	tools.mu.Unlock()
	genCallsBefore := gen.callCount()

	accepted, err := o.SendTurn(context.Background(), result.SessionID, "yes, I accept")
	if err != nil {
		t.Fatalf("acceptance SendTurn() error = %v", err)
	}
	if accepted.Answer != "Order 0001 placed." {
		t.Errorf("Answer = %q", accepted.Answer)
	}
	if gen.callCount() != genCallsBefore {
		t.Error("acceptance turn must not call the provider")
	}

	calls := tools.recordedCalls()
	retry := calls[len(calls)-1]
	if retry.Name != "placeOrder" {
		t.Fatalf("retried call = %q", retry.Name)
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(retry.Arguments), &args); err != nil {
		t.Fatalf("retry arguments %q: %v", retry.Arguments, err)
	}
	if args["termsChecked"] != true {
		t.Errorf("termsChecked = %v, want true", args["termsChecked"])
	}
	if args["cartId"] != "c1" {
		t.Errorf("cartId = %v, original arguments must be preserved", args["cartId"])
	}

	if sess.PendingInterrupt != nil {
		t.Error("terms gate not cleared after acceptance")
	}
}

func TestTermsGateDeclined(t *testing.T) {
	gen := &scriptGen{responses: []*model.Response{
		{ToolCalls: []model.ToolCall{{ID: "call_1", Name: "placeOrder", Arguments: "{}"}}},
		{Content: "Please accept the terms to continue."},
	}}
	tools := &fakeTools{
		connected: true,
		results: map[string]*mcp.ToolResult{
			"placeOrder": {Text: "terms and conditions not accepted", IsError: true},
		},
	}
	o := newTestOrchestrator(t, gen, tools)

	result, err := o.SendTurn(context.Background(), "", "place my order")
	if err != nil {
		t.Fatalf("SendTurn() error = %v", err)
	}

	toolCallsBefore := len(tools.recordedCalls())
	declined, err := o.SendTurn(context.Background(), result.SessionID, "no thanks")
	if err != nil {
		t.Fatalf("decline SendTurn() error = %v", err)
	}
	if declined.Answer != termsDeclinedAnswer {
		t.Errorf("Answer = %q, want the fixed decline answer", declined.Answer)
	}
	if len(tools.recordedCalls()) != toolCallsBefore {
		t.Error("decline must not retry the tool call")
	}

	sess := o.store.get(result.SessionID)
	if sess.PendingInterrupt != nil {
		t.Error("terms gate not cleared after decline")
	}
}

func TestTermsGateOnlyForOrderPlacementTools(t *testing.T) {
	gen := &scriptGen{responses: []*model.Response{
		{ToolCalls: []model.ToolCall{{ID: "call_1", Name: "searchProducts", Arguments: "{}"}}},
		{Content: "done"},
	}}
	tools := &fakeTools{
		connected: true,
		results: map[string]*mcp.ToolResult{
			"searchProducts": {Text: "error: terms and conditions page not found", IsError: true},
		},
	}
	o := newTestOrchestrator(t, gen, tools)

	result, err := o.SendTurn(context.Background(), "", "find the terms page")
	if err != nil {
		t.Fatalf("SendTurn() error = %v", err)
	}

	sess := o.store.get(result.SessionID)
	if sess.PendingInterrupt != nil {
		t.Error("terms gate raised by a non-order tool")
	}
}

func TestOrderFlowStartedByUtterance(t *testing.T) {
	gen := &scriptGen{responses: []*model.Response{{Content: "Sure, let's start with payment."}}}
	o := newTestOrchestrator(t, gen, &fakeTools{connected: true})

	result, err := o.SendTurn(context.Background(), "", "I'd like to checkout now")
	if err != nil {
		t.Fatalf("SendTurn() error = %v", err)
	}

	flow, ok := o.GetOrderFlowStatus(result.SessionID)
	if !ok {
		t.Fatal("no order flow after initiation utterance")
	}
	if !flow.IsActive || flow.CurrentStep != StepPayment {
		t.Errorf("flow = %+v, want active at payment", flow)
	}

	// The provider request carries the ephemeral flow context, the history
	// does not.
	req := gen.requests[0]
	last := req[len(req)-1]
	if last.Role != model.RoleSystem || !strings.Contains(last.Content, "order placement flow") {
		t.Errorf("last request message = %+v, want the flow context", last)
	}

	sess := o.store.get(result.SessionID)
	for _, m := range sess.History {
		if strings.Contains(m.Content, "order placement flow") {
			t.Error("ephemeral flow context leaked into history")
		}
	}
}

func TestToolConnectFailureDegradesToNoTools(t *testing.T) {
	gen := &scriptGen{responses: []*model.Response{{Content: "answered without tools"}}}
	tools := &fakeTools{connectErr: errors.New("server down")}
	o := newTestOrchestrator(t, gen, tools)

	result, err := o.SendTurn(context.Background(), "", "hello")
	if err != nil {
		t.Fatalf("SendTurn() error = %v", err)
	}
	if result.Answer != "answered without tools" {
		t.Errorf("Answer = %q", result.Answer)
	}
	if gen.toolsSeen[0] != nil {
		t.Error("request carried tools despite the connect failure")
	}
}

func TestHistoryTruncationKeepsSystemPrompt(t *testing.T) {
	store := NewStore(config.SessionConfig{HistoryCap: 6, TimeoutMinutes: 30, CleanupIntervalMinutes: 5})
	t.Cleanup(store.Close)
	gen := &scriptGen{}
	o := New(store, gen, &fakeTools{connected: true}, &config.Config{StoreName: "Acme Outdoors"})

	var sessionID string
	for i := 0; i < 8; i++ {
		result, err := o.SendTurn(context.Background(), sessionID, "tell me more")
		if err != nil {
			t.Fatalf("SendTurn() error = %v", err)
		}
		sessionID = result.SessionID
	}

	summary, ok := o.GetSessionSummary(sessionID)
	if !ok {
		t.Fatal("session missing")
	}
	if summary.MessageCount > 6 {
		t.Errorf("MessageCount = %d, want <= 6", summary.MessageCount)
	}
	if !summary.HasSystemPrompt {
		t.Error("system prompt lost in truncation")
	}
}

func TestConfiguredPromptAppearsOncePerRequest(t *testing.T) {
	const custom = "You are the assistant for Acme Outdoors. Be brief."

	store := NewStore(testSessionConfig())
	t.Cleanup(store.Close)
	gen := &scriptGen{responses: []*model.Response{{Content: "hi"}}}
	o := New(store, gen, &fakeTools{connected: true}, &config.Config{
		StoreName:           "Acme Outdoors",
		DefaultSystemPrompt: custom,
	})

	if _, err := o.SendTurn(context.Background(), "", "hello"); err != nil {
		t.Fatalf("SendTurn() error = %v", err)
	}

	var occurrences int
	for _, m := range gen.requests[0] {
		if m.Role == model.RoleSystem && strings.Contains(m.Content, custom) {
			occurrences++
		}
	}
	if occurrences != 1 {
		t.Fatalf("configured prompt appears %d times in the request, want exactly 1", occurrences)
	}
}

func TestClearSessionIsIdempotent(t *testing.T) {
	gen := &scriptGen{responses: []*model.Response{{Content: "hi"}}}
	o := newTestOrchestrator(t, gen, &fakeTools{connected: true})

	result, err := o.SendTurn(context.Background(), "", "hello")
	if err != nil {
		t.Fatalf("SendTurn() error = %v", err)
	}

	o.ClearSession(result.SessionID)
	if _, ok := o.GetSessionSummary(result.SessionID); ok {
		t.Fatal("session still present after clear")
	}
	o.ClearSession(result.SessionID) // second clear is a no-op
}
