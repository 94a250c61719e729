package chat

import (
	"fmt"
	"strings"
	"time"

	"storechat/model"
)

// buildSystemPrompt produces the grounding system prompt for a session,
// rebuilt each turn so the live context (current time) stays accurate.
func buildSystemPrompt(storeName, custom string) string {
	if custom != "" {
		return custom
	}
	return fmt.Sprintf(
		"You are the shopping assistant for %s. Help customers find products, "+
			"answer questions about orders and returns, and guide them through "+
			"placing orders. Be concise and friendly. The current date and time is %s.",
		storeName, time.Now().Format("Monday, 2 January 2006 15:04"),
	)
}

// buildOrderFlowContext renders the order flow state as an ephemeral system
// message for one request. It augments the outgoing message list only and
// is never persisted to history.
func buildOrderFlowContext(flow *OrderFlowState) model.Message {
	var sb strings.Builder
	sb.WriteString("An order placement flow is in progress.\n")
	sb.WriteString("Current step: " + string(flow.CurrentStep) + "\n")

	if len(flow.CollectedData) > 0 {
		sb.WriteString("Collected so far:\n")
		for k, v := range flow.CollectedData {
			sb.WriteString(fmt.Sprintf("  %s: %s\n", k, v))
		}
	}
	if len(flow.AvailableOptions.Addresses) > 0 {
		sb.WriteString("Available addresses: " + strings.Join(flow.AvailableOptions.Addresses, "; ") + "\n")
	}
	if len(flow.AvailableOptions.DeliveryModes) > 0 {
		sb.WriteString("Available delivery modes: " + strings.Join(flow.AvailableOptions.DeliveryModes, "; ") + "\n")
	}
	sb.WriteString("Collect the data for the current step before moving on. Steps run payment, address, delivery, confirmation, in that order.")

	return model.NewSystemMessage(sb.String())
}
