package provider

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/proposal-eval/pkg/anthropic"
)

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

type stubProvider struct {
	calls int
	text  string
	err   error
}

func (s *stubProvider) Name() string         { return "stub" }
func (s *stubProvider) Model() string        { return "stub-1" }
func (s *stubProvider) Temperature() float64 { return 0 }

func (s *stubProvider) Submit(_ context.Context, _, _ string) (*Completion, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &Completion{Text: s.text, Model: "stub-1"}, nil
}
