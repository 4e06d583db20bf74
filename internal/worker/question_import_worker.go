package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/cloudtrack/certprep/internal/config"
	"github.com/cloudtrack/certprep/internal/exam"
)

const (
	ImportBatchSize    = 100
	ImportBatchTimeout = 2 * time.Second
	ImportPollTimeout  = 1 * time.Second
)

// QuestionWriter persists imported questions.
type QuestionWriter interface {
	BulkUpsert(ctx context.Context, questions []exam.Question) error
	Upsert(ctx context.Context, q exam.Question) error
}

// Queue is the source of encoded questions. Pop returns redis.Nil when
// nothing arrived within timeout.
type Queue interface {
	Pop(ctx context.Context, timeout time.Duration) ([]byte, error)
	Push(ctx context.Context, payloads ...[]byte) error
}

// RedisQueue reads config.WorkerKey.QuestionImportQueue.
type RedisQueue struct {
	rdb *redis.Client
}

// NewRedisQueue creates a new RedisQueue.
func NewRedisQueue(rdb *redis.Client) *RedisQueue {
	return &RedisQueue{rdb: rdb}
}

func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) ([]byte, error) {
	item, err := q.rdb.BLPop(ctx, timeout, config.WorkerKey.QuestionImportQueue).Result()
	if err != nil {
		return nil, err
	}
	if len(item) < 2 {
		return nil, redis.Nil
	}
	return []byte(item[1]), nil
}

func (q *RedisQueue) Push(ctx context.Context, payloads ...[]byte) error {
	if len(payloads) == 0 {
		return nil
	}
	pipe := q.rdb.Pipeline()
	for _, p := range payloads {
		pipe.RPush(ctx, config.WorkerKey.QuestionImportQueue, p)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// QuestionImportWorker drains the import queue into the question bank in
// batches.
type QuestionImportWorker struct {
	queue  Queue
	writer QuestionWriter
	log    zerolog.Logger

	batchSize    int
	batchTimeout time.Duration
	pollTimeout  time.Duration
}

func NewQuestionImportWorker(queue Queue, writer QuestionWriter, log zerolog.Logger) *QuestionImportWorker {
	return &QuestionImportWorker{
		queue:        queue,
		writer:       writer,
		log:          log.With().Str("component", "question_import_worker").Logger(),
		batchSize:    ImportBatchSize,
		batchTimeout: ImportBatchTimeout,
		pollTimeout:  ImportPollTimeout,
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

// Start blocks until ctx is cancelled, then flushes what it holds.
func (w *QuestionImportWorker) Start(ctx context.Context) {
	w.log.Info().Msg("QuestionImportWorker started")

	batch := make([]exam.Question, 0, w.batchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= w.batchSize || time.Since(lastFlush) >= w.batchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("pending", len(batch)).Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			raw, err := w.queue.Pop(ctx, w.pollTimeout)
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("Queue pop error")
				}
				continue
			}

			var q exam.Question
			if err := json.Unmarshal(raw, &q); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}
			if err := q.Validate(); err != nil {
				w.log.Error().Err(err).Msg("Dropping invalid question")
				continue
			}

			batch = append(batch, q)
		}
	}
}

// ----------------------------------------------------------------
// Batch upsert with per-row fallback
// ----------------------------------------------------------------

func (w *QuestionImportWorker) flushSafe(ctx context.Context, batch []exam.Question) {
	if len(batch) == 0 {
		return
	}

	err := w.writer.BulkUpsert(ctx, dedupe(batch))
	if err == nil {
		w.log.Info().Int("count", len(batch)).Msg("Imported question batch")
		return
	}
	w.log.Warn().Err(err).Msg("bulk question upsert failed, using fallback")

	for _, q := range batch {
		if err := w.writer.Upsert(ctx, q); err != nil {
			w.log.Error().Err(err).Str("question_id", q.ID).Msg("Upsert failed, requeueing")
			raw, _ := json.Marshal(q)
			if err := w.queue.Push(ctx, raw); err != nil {
				w.log.Error().Err(err).Str("question_id", q.ID).Msg("Requeue failed, question lost")
			}
		}
	}
}

// dedupe keeps the last occurrence of each id, since one INSERT ... ON
// CONFLICT statement cannot touch the same row twice.
func dedupe(batch []exam.Question) []exam.Question {
	last := make(map[string]int, len(batch))
	for i, q := range batch {
		last[q.ID] = i
	}
	if len(last) == len(batch) {
		return batch
	}

	out := make([]exam.Question, 0, len(last))
	for i, q := range batch {
		if last[q.ID] == i {
			out = append(out, q)
		}
	}
	return out
}
