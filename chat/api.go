package chat

// Session-facing operations beyond the chat turn itself. These mirror what
// callers need for lifecycle management and for driving the order flow
// explicitly instead of through conversation.

// ClearSession discards a session and all of its state. Clearing an unknown
// or already-cleared session succeeds quietly.
func (o *Orchestrator) ClearSession(sessionID string) {
	o.store.clear(sessionID)
}

// GetSessionSummary returns a snapshot of a session's shape without
// exposing the history itself. The second return is false for unknown ids.
func (o *Orchestrator) GetSessionSummary(sessionID string) (SessionSummary, bool) {
	sess := o.store.get(sessionID)
	if sess == nil {
		return SessionSummary{}, false
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return SessionSummary{
		MessageCount:    len(sess.History),
		HasSystemPrompt: sess.hasSystemPrompt(),
		LastActivity:    sess.LastActivity,
	}, true
}

// StartOrderFlow begins a guided order flow for the session, creating the
// session if needed; the resolved session id is returned so callers that
// passed an empty id can keep addressing the same session. Starting while a
// flow is already active restarts it from the first step.
func (o *Orchestrator) StartOrderFlow(sessionID string) (string, *OrderFlowState) {
	sess := o.store.getOrCreate(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.OrderFlow = newOrderFlow()
	return sess.ID, snapshotFlow(sess.OrderFlow)
}

// CancelOrderFlow abandons the session's order flow, discarding collected
// data. It is a no-op when no flow is active.
func (o *Orchestrator) CancelOrderFlow(sessionID string) {
	sess := o.store.get(sessionID)
	if sess == nil {
		return
	}

	sess.mu.Lock()
	sess.OrderFlow = nil
	sess.mu.Unlock()
}

// GetOrderFlowStatus returns a copy of the session's order flow state. The
// second return is false when the session is unknown or has no flow.
func (o *Orchestrator) GetOrderFlowStatus(sessionID string) (*OrderFlowState, bool) {
	sess := o.store.get(sessionID)
	if sess == nil {
		return nil, false
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.OrderFlow == nil {
		return nil, false
	}
	return snapshotFlow(sess.OrderFlow), true
}

// UpdateOrderFlowData merges collected keys into the session's active order
// flow. It reports whether a flow accepted the data.
func (o *Orchestrator) UpdateOrderFlowData(sessionID string, data map[string]string) bool {
	sess := o.store.get(sessionID)
	if sess == nil {
		return false
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.OrderFlow == nil || !sess.OrderFlow.IsActive {
		return false
	}
	sess.OrderFlow.MergeData(data)
	return true
}

// AdvanceOrderStep moves the session's order flow to the next step and
// returns it. The second return is false when there is no flow to advance.
func (o *Orchestrator) AdvanceOrderStep(sessionID string) (OrderStep, bool) {
	sess := o.store.get(sessionID)
	if sess == nil {
		return "", false
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.OrderFlow == nil {
		return "", false
	}
	return sess.OrderFlow.Advance(), true
}

// snapshotFlow copies the flow state so callers cannot mutate session
// internals through the returned pointer.
func snapshotFlow(flow *OrderFlowState) *OrderFlowState {
	out := &OrderFlowState{
		IsActive:    flow.IsActive,
		CurrentStep: flow.CurrentStep,
		AvailableOptions: OrderOptions{
			Addresses:     append([]string(nil), flow.AvailableOptions.Addresses...),
			DeliveryModes: append([]string(nil), flow.AvailableOptions.DeliveryModes...),
		},
		CollectedData: make(map[string]string, len(flow.CollectedData)),
	}
	for k, v := range flow.CollectedData {
		out.CollectedData[k] = v
	}
	return out
}
