package provider

import (
	"context"
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"storechat/model"
)

// RuleBasedProvider is the deterministic responder of last resort. It
// answers from keyword rules against the latest user utterance and can
// never fail, which guarantees the system always produces an answer even
// with every backend down.
type RuleBasedProvider struct {
	storeName string
}

// NewRuleBasedProvider creates the rule-based responder.
func NewRuleBasedProvider(storeName string) *RuleBasedProvider {
	if storeName == "" {
		storeName = "our store"
	}
	return &RuleBasedProvider{storeName: storeName}
}

type rule struct {
	keywords []string
	respond  func(storeName string) string
}

// Rules are checked in order; first hit wins. Farewell before greeting so
// "bye" is not swallowed by a greeting rule extension.
var rules = []rule{
	{
		keywords: []string{"bye", "goodbye", "see you", "farewell"},
		respond: func(string) string {
			return "Goodbye! Thanks for visiting, and come back any time."
		},
	},
	{
		keywords: []string{"hello", "hi", "hey", "good morning", "good afternoon", "good evening"},
		respond: func(storeName string) string {
			return "Hello! Welcome to " + storeName + ". How can I help you today?"
		},
	},
	{
		keywords: []string{"help", "assist", "support", "how do i"},
		respond: func(string) string {
			return "I can help you browse products, check your order status, place an order, or handle a return. What would you like to do?"
		},
	},
	{
		keywords: []string{"product", "item", "catalog", "price", "stock", "available"},
		respond: func(string) string {
			return "You can browse our product catalog on the storefront. If you tell me what you are looking for, I will do my best to point you in the right direction."
		},
	},
	{
		keywords: []string{"order", "checkout", "buy", "purchase"},
		respond: func(string) string {
			return "I can help with orders. You can place a new order, or ask about an existing one with your order number."
		},
	},
	{
		keywords: []string{"return", "refund", "exchange", "cancel"},
		respond: func(string) string {
			return "For returns and refunds, I will need your order number. Returns are accepted within 30 days of delivery."
		},
	},
	{
		keywords: []string{"contact", "phone", "email", "human", "agent", "speak to"},
		respond: func(storeName string) string {
			return "You can reach the " + storeName + " support team through the contact page, or ask me and I will try to help first."
		},
	},
}

const fallbackAnswer = "I'm sorry, I didn't quite catch that. I can help with products, orders, returns, or general questions about the store."

// Name implements Provider.Name.
func (p *RuleBasedProvider) Name() string { return "rulebased" }

// GenerateResponse implements Provider.GenerateResponse. It never returns
// an error.
func (p *RuleBasedProvider) GenerateResponse(_ context.Context, messages []model.Message, _ []mcptypes.Tool) (*model.Response, error) {
	return &model.Response{Content: p.answer(lastUserContent(messages))}, nil
}

// StreamResponse implements Provider.StreamResponse with a single callback
// invocation carrying the full answer.
func (p *RuleBasedProvider) StreamResponse(_ context.Context, messages []model.Message, _ []mcptypes.Tool, callback model.StreamCallback) error {
	if callback == nil {
		return nil
	}
	return callback(p.answer(lastUserContent(messages)), nil)
}

func (p *RuleBasedProvider) answer(utterance string) string {
	lowered := strings.ToLower(utterance)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lowered, kw) {
				return r.respond(p.storeName)
			}
		}
	}
	return fallbackAnswer
}

func lastUserContent(messages []model.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == model.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

// GetModel implements Provider.GetModel.
func (p *RuleBasedProvider) GetModel() string { return "rule-based" }

// SetModel implements Provider.SetModel. The responder has no model to switch.
func (p *RuleBasedProvider) SetModel(string) {}

// Ping implements Provider.Ping. The responder is always available.
func (p *RuleBasedProvider) Ping(context.Context) error { return nil }
