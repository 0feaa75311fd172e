package core

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// Source tags which answer source produced a resolution.
type Source string

const (
	SourceSemanticRetrieval Source = "semantic_retrieval"
	SourceClinicalKnowledge Source = "clinical_knowledge"
	SourceLLMFallback       Source = "llm_fallback"
)

// SafetySystemPrompt is sent with every LLM fallback request.
const SafetySystemPrompt = "You are a medical assistant. Do not give a diagnosis. " +
	"Provide safe, general medical guidance for informational purposes only, " +
	"and suggest consulting a professional when appropriate."

type SimilaritySource interface {
	Match(ctx context.Context, question string) (*Match, error)
}

type KnowledgeSource interface {
	ExactMatch(ctx context.Context, question string) (string, bool, error)
}

type Resolution struct {
	Answer string `json:"response"`
	Source Source `json:"source"`
}

// Resolver answers a patient question from the first source that has an
// answer: the similarity corpus, then staff-curated knowledge, then the LLM.
type Resolver struct {
	similarity SimilaritySource
	knowledge  KnowledgeSource
	llm        Completer
	logger     *zap.Logger
}

func NewResolver(similarity SimilaritySource, knowledge KnowledgeSource, llm Completer, logger *zap.Logger) *Resolver {
	return &Resolver{
		similarity: similarity,
		knowledge:  knowledge,
		llm:        llm,
		logger:     logger,
	}
}

// Resolve has no side effects. Lookup failures in the first two steps count
// as a miss; an LLM failure fails the whole resolution.
func (r *Resolver) Resolve(ctx context.Context, question string) (*Resolution, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, invalidInput("message is required")
	}

	match, err := r.similarity.Match(ctx, question)
	if err != nil {
		r.logger.Warn("similarity lookup failed, treating as no match", zap.Error(err))
	} else if match != nil {
		r.logger.Info("answered from similarity corpus",
			zap.Int64("record_id", match.Record.ID), zap.Float32("score", match.Score))
		return &Resolution{Answer: match.Record.Answer, Source: SourceSemanticRetrieval}, nil
	}

	answer, found, err := r.knowledge.ExactMatch(ctx, question)
	if err != nil {
		r.logger.Warn("clinical knowledge lookup failed, treating as no match", zap.Error(err))
	} else if found {
		r.logger.Info("answered from clinical knowledge")
		return &Resolution{Answer: answer, Source: SourceClinicalKnowledge}, nil
	}

	answer, err = r.llm.Complete(ctx, SafetySystemPrompt, question)
	if err != nil {
		return nil, &ResolutionFailedError{Cause: err}
	}
	if strings.TrimSpace(answer) == "" {
		return nil, &ResolutionFailedError{Cause: &UpstreamError{Service: "llm", Err: errors.New("empty completion")}}
	}
	r.logger.Info("answered by llm fallback")
	return &Resolution{Answer: answer, Source: SourceLLMFallback}, nil
}
