// Package queue implements the blocking-pop submission queue consumer (C6).
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "judgecore/pkg/errors"
	"judgecore/pkg/logger"

	"go.uber.org/zap"
)

// Job is the transient queue message produced by the API on submission
// creation.
type Job struct {
	SubmissionID string `json:"submission_id"`
	ProblemID    string `json:"problem_id"`
	Language     string `json:"language"`
	Code         string `json:"code"`
}

// Handler processes one dispatched job. The judge pipeline's Judge method
// satisfies this.
type Handler func(ctx context.Context, submissionID string) error

const (
	popWait = 1 * time.Second
	backoff = 1 * time.Second
)

// Consumer blocks on a Redis list key and dispatches each job synchronously.
type Consumer struct {
	client *redis.Client
	key    string
}

func NewConsumer(client *redis.Client, key string) *Consumer {
	return &Consumer{client: client, key: key}
}

// Run loops until ctx is cancelled. Any per-job error is logged and
// followed by a fixed backoff; the loop never exits on a single job's
// failure, matching the worker's "never crash" contract.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		result, err := c.client.BRPop(ctx, popWait, c.key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			popErr := apperrors.Wrap(err, apperrors.QueuePopFailed)
			logger.Error(ctx, "queue pop failed", zap.Error(popErr), zap.Int("error_code", int(apperrors.GetCode(popErr))))
			time.Sleep(backoff)
			continue
		}

		// result[0] is the key name, result[1] is the payload.
		if len(result) != 2 {
			logger.Error(ctx, "unexpected brpop reply shape")
			time.Sleep(backoff)
			continue
		}

		var job Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			decodeErr := apperrors.Wrap(err, apperrors.QueueDecodeFailed)
			logger.Error(ctx, "decode job failed", zap.Error(decodeErr), zap.Int("error_code", int(apperrors.GetCode(decodeErr))), zap.String("payload", result[1]))
			time.Sleep(backoff)
			continue
		}

		if err := handle(ctx, job.SubmissionID); err != nil {
			logger.Error(ctx, "judge dispatch failed", zap.String("submission_id", job.SubmissionID), zap.Error(err), zap.Int("error_code", int(apperrors.GetCode(err))))
			time.Sleep(backoff)
		}
	}
}
