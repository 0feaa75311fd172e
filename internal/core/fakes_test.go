package core

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/medsecure/telehealth/internal/store"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeEmbedder returns fixed vectors per text and a fallback vector otherwise.
type fakeEmbedder struct {
	vectors  map[string][]float32
	fallback []float32
	err      error
	calls    int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return f.fallback, nil
}

type fakeCompleter struct {
	answer     string
	err        error
	calls      int
	lastSystem string
	lastUser   string
}

func (f *fakeCompleter) Complete(_ context.Context, systemPrompt, userText string) (string, error) {
	f.calls++
	f.lastSystem = systemPrompt
	f.lastUser = userText
	return f.answer, f.err
}

type failingKnowledge struct{ err error }

func (f failingKnowledge) ExactMatch(context.Context, string) (string, bool, error) {
	return "", false, f.err
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "core.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}
