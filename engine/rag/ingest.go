package rag

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/bidcraft/bidcraft/engine/rag/chunk"
	"github.com/bidcraft/bidcraft/engine/rag/processor"
	"github.com/bidcraft/bidcraft/engine/rag/vectordb"
)

type retrySettings struct {
	attempts int
	backoff  time.Duration
	max      time.Duration
}

func defaultRetry() retrySettings {
	return retrySettings{attempts: 3, backoff: 200 * time.Millisecond, max: 2 * time.Second}
}

func (r retrySettings) backoffDuration(attempt int) time.Duration {
	delay := r.backoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if r.max > 0 && delay >= r.max {
			return r.max
		}
	}
	return delay
}

// persistChunks embeds and upserts chunks in embedder-sized batches.
// Returns how many records landed in the store.
func (s *Service) persistChunks(ctx context.Context, chunks []chunk.Chunk) (int, error) {
	batchSize := s.embedder.BatchSize()
	if batchSize <= 0 {
		batchSize = 1
	}
	total := 0
	for start := 0; start < len(chunks); start += batchSize {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		vectors, err := s.embedBatch(ctx, batch)
		if err != nil {
			return total, err
		}
		if len(vectors) != len(batch) {
			return total, fmt.Errorf("rag: embedder returned %d vectors for %d chunks", len(vectors), len(batch))
		}
		records := make([]vectordb.Record, len(batch))
		for i := range batch {
			records[i] = vectordb.Record{
				ID:        uuid.NewString(),
				Text:      batch[i].Text,
				Embedding: vectors[i],
				Metadata:  batch[i].Metadata,
			}
		}
		if err := s.upsertBatch(ctx, records); err != nil {
			return total, err
		}
		total += len(records)
	}
	return total, nil
}

func (s *Service) embedBatch(ctx context.Context, batch []chunk.Chunk) ([][]float32, error) {
	texts := make([]string, len(batch))
	for i := range batch {
		texts[i] = batch[i].Text
	}
	var out [][]float32
	var err error
	for attempt := 1; attempt <= s.retry.attempts; attempt++ {
		if attempt > 1 {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			time.Sleep(s.retry.backoffDuration(attempt - 1))
		}
		out, err = s.embedder.EmbedDocuments(ctx, texts)
		if err == nil {
			return out, nil
		}
	}
	return nil, fmt.Errorf("rag: embed documents failed: %w", err)
}

func (s *Service) upsertBatch(ctx context.Context, records []vectordb.Record) error {
	var err error
	for attempt := 1; attempt <= s.retry.attempts; attempt++ {
		if attempt > 1 {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			time.Sleep(s.retry.backoffDuration(attempt - 1))
		}
		err = s.store.Upsert(ctx, records)
		if err == nil {
			return nil
		}
	}
	return fmt.Errorf("rag: persist vectors failed: %w", err)
}

// documentFilter matches every record one document produced.
func documentFilter(projectID, rfpDocumentID int) vectordb.Filter {
	return vectordb.Filter{Metadata: map[string]string{
		processor.MetaProjectID:     strconv.Itoa(projectID),
		processor.MetaRFPDocumentID: strconv.Itoa(rfpDocumentID),
	}}
}

// projectFilter matches every record in a project.
func projectFilter(projectID int) map[string]string {
	return map[string]string{processor.MetaProjectID: strconv.Itoa(projectID)}
}
