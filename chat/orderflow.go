package chat

import "strings"

// OrderStep is one stage of the guided order-placement dialogue.
type OrderStep string

const (
	StepPayment      OrderStep = "payment"
	StepAddress      OrderStep = "address"
	StepDelivery     OrderStep = "delivery"
	StepConfirmation OrderStep = "confirmation"
	StepComplete     OrderStep = "complete"
)

var stepSequence = []OrderStep{StepPayment, StepAddress, StepDelivery, StepConfirmation, StepComplete}

// OrderFlowState tracks the multi-step order data collection for one
// session. CurrentStep only ever advances forward through the fixed
// sequence; the whole state is cleared on cancel or session clear.
type OrderFlowState struct {
	IsActive         bool
	CurrentStep      OrderStep
	CollectedData    map[string]string
	AvailableOptions OrderOptions
}

// OrderOptions holds the choices offered to the user at the address and
// delivery steps.
type OrderOptions struct {
	Addresses     []string
	DeliveryModes []string
}

// newOrderFlow starts an order flow at the payment step.
func newOrderFlow() *OrderFlowState {
	return &OrderFlowState{
		IsActive:      true,
		CurrentStep:   StepPayment,
		CollectedData: make(map[string]string),
	}
}

// Advance moves to the next step in the fixed sequence and returns the new
// step. Advancing past complete is a no-op: steps never skip or regress.
func (o *OrderFlowState) Advance() OrderStep {
	for i, step := range stepSequence {
		if step == o.CurrentStep {
			if i+1 < len(stepSequence) {
				o.CurrentStep = stepSequence[i+1]
			}
			break
		}
	}
	if o.CurrentStep == StepComplete {
		o.IsActive = false
	}
	return o.CurrentStep
}

// MergeData merges supplied keys into the collected order data without
// discarding previously collected keys.
func (o *OrderFlowState) MergeData(data map[string]string) {
	if o.CollectedData == nil {
		o.CollectedData = make(map[string]string)
	}
	for k, v := range data {
		o.CollectedData[k] = v
	}
}

// orderInitiationPhrases trigger a new order flow when present in a user
// utterance and no flow is already active.
var orderInitiationPhrases = []string{
	"place order",
	"place my order",
	"place an order",
	"checkout",
	"check out",
	"buy now",
	"complete my purchase",
	"start an order",
}

func isOrderInitiation(utterance string) bool {
	lowered := strings.ToLower(utterance)
	for _, phrase := range orderInitiationPhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}
