package store

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

// QAPair is one row of a seed file.
type QAPair struct {
	Question string
	Answer   string
}

// ParseQATable extracts question/answer pairs from a two-column Markdown
// table:
//
//	| question | answer |
//	|---|---|
//	| What is a fever? | A body temperature above 38 C. |
//
// The header and separator rows are optional. Rows with an empty cell are
// skipped.
func ParseQATable(content string, logger *zap.Logger) []QAPair {
	var pairs []QAPair
	for i, line := range strings.Split(content, "\n") {
		trimmedLine := strings.TrimSpace(line)
		if trimmedLine == "" {
			continue
		}
		if !strings.HasPrefix(trimmedLine, "|") || !strings.HasSuffix(trimmedLine, "|") {
			logger.Debug("skipping line not matching table row format", zap.Int("line", i+1))
			continue
		}
		if strings.Contains(trimmedLine, "---") {
			continue // separator
		}

		// "| q | a |" splits into ["", " q ", " a ", ""]
		parts := strings.Split(trimmedLine, "|")
		if len(parts) < 4 {
			logger.Warn("skipping malformed table row", zap.Int("line", i+1))
			continue
		}
		question := strings.TrimSpace(parts[1])
		answer := strings.TrimSpace(strings.Join(parts[2:len(parts)-1], "|"))
		if question == "" || answer == "" {
			logger.Warn("skipping row with empty cell", zap.Int("line", i+1))
			continue
		}
		if strings.EqualFold(question, "question") && strings.EqualFold(answer, "answer") {
			continue // header
		}
		pairs = append(pairs, QAPair{Question: question, Answer: answer})
	}
	return pairs
}

func (s *SQLiteStore) readSeedFile(filePath string) ([]QAPair, error) {
	contentBytes, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", filePath, err)
	}
	pairs := ParseQATable(string(contentBytes), s.logger)
	if len(pairs) == 0 {
		s.logger.Warn("no rows found in seed file; expected a | question | answer | table", zap.String("file", filePath))
	}
	return pairs, nil
}

// IngestKnowledgeFromFile loads staff-curated answers. keyFn derives the
// lookup key from each question and must match the one used for lookups.
func (s *SQLiteStore) IngestKnowledgeFromFile(ctx context.Context, filePath string, keyFn func(string) string) (int, error) {
	pairs, err := s.readSeedFile(filePath)
	if err != nil {
		return 0, err
	}

	count := 0
	for i, pair := range pairs {
		if err := s.UpsertKnowledge(ctx, pair.Question, keyFn(pair.Question), pair.Answer); err != nil {
			s.logger.Warn("failed to store knowledge row, skipping", zap.Int("row", i+1), zap.Error(err))
			continue
		}
		count++
	}
	s.logger.Info("ingested clinical knowledge", zap.Int("rows", count), zap.Int("total", len(pairs)))
	return count, nil
}

// IngestCorpusFromFile embeds each question and appends it to the similarity
// corpus. interval spaces out embedding calls to stay under provider rate
// limits; zero disables the delay.
func (s *SQLiteStore) IngestCorpusFromFile(ctx context.Context, filePath string, embedder func(context.Context, string) ([]float32, error), interval time.Duration) (int, error) {
	pairs, err := s.readSeedFile(filePath)
	if err != nil {
		return 0, err
	}
	s.logger.Info("embedding corpus rows (this may take a while)", zap.Int("rows", len(pairs)))

	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	count := 0
	for i, pair := range pairs {
		if tick != nil {
			select {
			case <-tick:
			case <-ctx.Done():
				return count, ctx.Err()
			}
		}

		embedding, err := embedder(ctx, pair.Question)
		if err != nil {
			s.logger.Warn("failed to embed corpus row, skipping", zap.Int("row", i+1), zap.Error(err))
			continue
		}
		rec := QARecord{Question: pair.Question, Answer: pair.Answer, Embedding: embedding}
		if err := s.CreateQARecord(ctx, &rec); err != nil {
			s.logger.Warn("failed to store corpus row, skipping", zap.Int("row", i+1), zap.Error(err))
			continue
		}
		count++
		if count%10 == 0 || count == len(pairs) {
			s.logger.Info("ingest progress", zap.Int("done", count), zap.Int("total", len(pairs)))
		}
	}
	return count, nil
}
