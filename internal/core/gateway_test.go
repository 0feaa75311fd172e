package core

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	reply *schema.Message
	err   error
	input []*schema.Message
}

func (f *fakeGenerator) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.input = input
	return f.reply, f.err
}

func TestGatewayClient_Complete(t *testing.T) {
	gen := &fakeGenerator{reply: schema.AssistantMessage("  Rest and hydrate\n", nil)}
	c := &GatewayClient{generator: gen, model: DefaultGatewayModel}

	answer, err := c.Complete(context.Background(), SafetySystemPrompt, "I have a headache")
	require.NoError(t, err)
	assert.Equal(t, "Rest and hydrate", answer)

	require.Len(t, gen.input, 2)
	assert.Equal(t, schema.System, gen.input[0].Role)
	assert.Equal(t, SafetySystemPrompt, gen.input[0].Content)
	assert.Equal(t, schema.User, gen.input[1].Role)
	assert.Equal(t, "I have a headache", gen.input[1].Content)
}

func TestGatewayClient_Errors(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{"transport error", &fakeGenerator{err: errors.New("dial tcp: connection refused")}},
		{"nil reply", &fakeGenerator{}},
		{"empty content", &fakeGenerator{reply: schema.AssistantMessage(" ", nil)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &GatewayClient{generator: tt.gen, model: DefaultGatewayModel}
			_, err := c.Complete(context.Background(), SafetySystemPrompt, "question")
			var upstream *UpstreamError
			require.ErrorAs(t, err, &upstream)
			assert.Contains(t, upstream.Service, DefaultGatewayModel)
		})
	}
}

func TestNewGatewayClient_Defaults(t *testing.T) {
	c, err := NewGatewayClient(context.Background(), "", "test-key", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultGatewayModel, c.model)
}
