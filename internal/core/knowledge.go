package core

import (
	"context"
	"strings"

	"github.com/medsecure/telehealth/internal/store"
	"golang.org/x/text/cases"
)

const (
	MatchNormalized = "normalized"
	MatchExact      = "exact"
)

type KnowledgeStore interface {
	GetKnowledgeByKey(ctx context.Context, key string) (*store.KnowledgeEntry, error)
	UpsertKnowledge(ctx context.Context, question, key, answer string) error
}

// KnowledgeBase looks up staff-curated answers by question key.
type KnowledgeBase struct {
	store KnowledgeStore
	key   func(string) string
}

// NewKnowledgeBase returns a lookup using the given match mode. Exact mode
// compares trimmed text byte for byte. Unknown modes fall back to normalized
// matching.
func NewKnowledgeBase(s KnowledgeStore, mode string) *KnowledgeBase {
	key := NormalizeQuestion
	if mode == MatchExact {
		key = strings.TrimSpace
	}
	return &KnowledgeBase{store: s, key: key}
}

// NormalizeQuestion trims, collapses inner whitespace and case-folds q.
func NormalizeQuestion(q string) string {
	return cases.Fold().String(strings.Join(strings.Fields(q), " "))
}

// Key returns the lookup key for question.
func (k *KnowledgeBase) Key(question string) string {
	return k.key(question)
}

// ExactMatch returns the curated answer stored under question's key.
func (k *KnowledgeBase) ExactMatch(ctx context.Context, question string) (string, bool, error) {
	entry, err := k.store.GetKnowledgeByKey(ctx, k.key(question))
	if err != nil {
		return "", false, err
	}
	if entry == nil {
		return "", false, nil
	}
	return entry.Answer, true, nil
}

func (k *KnowledgeBase) AddAnswer(ctx context.Context, question, answer string) error {
	question, answer = strings.TrimSpace(question), strings.TrimSpace(answer)
	if question == "" || answer == "" {
		return invalidInput("question and answer are required")
	}
	return k.store.UpsertKnowledge(ctx, question, k.key(question), answer)
}
