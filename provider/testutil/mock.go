// Package testutil provides a scriptable provider implementation for tests.
package testutil

import (
	"context"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"storechat/model"
)

// MockProvider implements model.Provider with overridable func fields. Zero
// values give benign defaults: empty responses and nil errors.
type MockProvider struct {
	NameValue  string
	ModelValue string

	GenerateFunc func(ctx context.Context, messages []model.Message, tools []mcptypes.Tool) (*model.Response, error)
	StreamFunc   func(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, cb model.StreamCallback) error
	PingFunc     func(ctx context.Context) error
}

func (m *MockProvider) Name() string {
	if m.NameValue == "" {
		return "mock"
	}
	return m.NameValue
}

func (m *MockProvider) GenerateResponse(ctx context.Context, messages []model.Message, tools []mcptypes.Tool) (*model.Response, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, messages, tools)
	}
	return &model.Response{Content: "mock response"}, nil
}

func (m *MockProvider) StreamResponse(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, cb model.StreamCallback) error {
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, messages, tools, cb)
	}
	resp, err := m.GenerateResponse(ctx, messages, tools)
	if err != nil {
		return err
	}
	return cb(resp.Content, resp.ToolCalls)
}

func (m *MockProvider) GetModel() string { return m.ModelValue }

func (m *MockProvider) SetModel(model string) { m.ModelValue = model }

func (m *MockProvider) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}
