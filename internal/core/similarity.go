package core

import (
	"context"
	"fmt"

	"github.com/medsecure/telehealth/internal/store"
	"github.com/medsecure/telehealth/internal/vector"
	"go.uber.org/zap"
)

// DefaultSimilarityThreshold is the minimum cosine similarity (exclusive) for
// a corpus answer to be reused.
const DefaultSimilarityThreshold = 0.85

type CorpusStore interface {
	GetAllQARecords(ctx context.Context) ([]store.QARecord, error)
	CreateQARecord(ctx context.Context, rec *store.QARecord) error
}

// Match is a corpus record that scored above the acceptance threshold.
type Match struct {
	Record store.QARecord
	Score  float32
}

// SimilarityMatcher finds previously answered questions close to a new one.
// The corpus is read from the store on every lookup.
type SimilarityMatcher struct {
	embedder  Embedder
	corpus    CorpusStore
	threshold float32
	logger    *zap.Logger
}

func NewSimilarityMatcher(embedder Embedder, corpus CorpusStore, threshold float32, logger *zap.Logger) *SimilarityMatcher {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	return &SimilarityMatcher{
		embedder:  embedder,
		corpus:    corpus,
		threshold: threshold,
		logger:    logger,
	}
}

func (m *SimilarityMatcher) Embed(ctx context.Context, text string) ([]float32, error) {
	embedding, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(embedding) == 0 {
		return nil, &UpstreamError{Service: "embedding", Err: fmt.Errorf("empty embedding")}
	}
	return embedding, nil
}

// Nearest returns the closest corpus record if its score exceeds the
// threshold, or nil.
func (m *SimilarityMatcher) Nearest(ctx context.Context, embedding []float32) (*Match, error) {
	records, err := m.corpus.GetAllQARecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load similarity corpus: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	candidates := make([][]float32, len(records))
	for i := range records {
		candidates[i] = records[i].Embedding
	}
	idx, score := vector.Best(embedding, candidates)
	if idx < 0 {
		m.logger.Debug("no comparable corpus embedding", zap.Int("records", len(records)))
		return nil, nil
	}
	if score <= m.threshold {
		m.logger.Debug("nearest corpus match below threshold",
			zap.Float32("score", score), zap.Float32("threshold", m.threshold))
		return nil, nil
	}
	return &Match{Record: records[idx], Score: score}, nil
}

// Match embeds question and looks up its nearest corpus record.
func (m *SimilarityMatcher) Match(ctx context.Context, question string) (*Match, error) {
	embedding, err := m.Embed(ctx, question)
	if err != nil {
		return nil, err
	}
	return m.Nearest(ctx, embedding)
}

// Record embeds question and appends the pair to the corpus.
func (m *SimilarityMatcher) Record(ctx context.Context, question, answer string) (*store.QARecord, error) {
	embedding, err := m.Embed(ctx, question)
	if err != nil {
		return nil, err
	}
	rec := &store.QARecord{Question: question, Answer: answer, Embedding: embedding}
	if err := m.corpus.CreateQARecord(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}
