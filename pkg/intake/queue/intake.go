// Package queue provides redis list intake for run requests. External systems
// push JSON payloads onto a list; the intake pops them and starts runs.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/tricall/pkg/models"
	redis "github.com/redis/go-redis/v9"
)

const (
	defaultQueue   = "tricall:runs"
	popTimeout     = 1 * time.Second
	connectTimeout = 5 * time.Second
)

// RunRequest is the wire payload an external producer pushes onto the list.
type RunRequest struct {
	TranscriptIDs []string `json:"transcript_ids"`
	AutoApprove   bool     `json:"auto_approve"`
}

// Validate rejects payloads that cannot start a run.
func (r *RunRequest) Validate() error {
	if len(r.TranscriptIDs) == 0 {
		return errors.New("transcript_ids must not be empty")
	}

	return nil
}

// DecodeRunRequest parses and validates one queued message.
func DecodeRunRequest(message string) (*RunRequest, error) {
	var request RunRequest
	if err := json.Unmarshal([]byte(message), &request); err != nil {
		return nil, fmt.Errorf("malformed run request: %w", err)
	}

	if err := request.Validate(); err != nil {
		return nil, err
	}

	return &request, nil
}

// Starter starts a run for a decoded request.
type Starter func(ctx context.Context, transcriptIDs []string, autoApprove bool) (*models.Run, error)

// Intake consumes run requests from a redis list with BLPop. Malformed
// messages are logged and dropped; they never stop the consumer.
type Intake struct {
	redisURL string
	queue    string
	starter  Starter

	client *redis.Client
	logger *slog.Logger
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewIntake(redisURL, queue string, starter Starter, logger *slog.Logger) *Intake {
	if queue == "" {
		queue = defaultQueue
	}

	return &Intake{
		redisURL: redisURL,
		queue:    queue,
		starter:  starter,
		stopCh:   make(chan struct{}),
		logger: logger.With(
			"module", "queue_intake",
			"queue", queue,
		),
	}
}

func (i *Intake) Start(ctx context.Context) error {
	options, err := redis.ParseURL(i.redisURL)
	if err != nil {
		return fmt.Errorf("invalid redis url: %w", err)
	}

	i.client = redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := i.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	i.logger.InfoContext(ctx, "Connected to Redis", "addr", options.Addr)

	i.wg.Add(1)

	go i.consume(ctx)

	return nil
}

func (i *Intake) consume(ctx context.Context) {
	defer i.wg.Done()

	i.logger.InfoContext(ctx, "Starting run request consumer")

	for {
		select {
		case <-i.stopCh:
			i.logger.InfoContext(ctx, "Run request consumer stopped")

			return
		case <-ctx.Done():
			i.logger.InfoContext(ctx, "Context cancelled, stopping run request consumer")

			return
		default:
			if err := i.processMessage(ctx); err != nil {
				i.logger.ErrorContext(ctx, "Error processing run request", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

func (i *Intake) processMessage(ctx context.Context) error {
	result, err := i.client.BLPop(ctx, popTimeout, i.queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("failed to pop run request: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	request, err := DecodeRunRequest(result[1])
	if err != nil {
		i.logger.WarnContext(ctx, "Dropping malformed run request",
			"message", result[1],
			"error", err)

		return nil
	}

	run, err := i.starter(ctx, request.TranscriptIDs, request.AutoApprove)
	if err != nil {
		i.logger.ErrorContext(ctx, "Failed to start run from queue",
			"transcripts", len(request.TranscriptIDs),
			"error", err)

		return nil
	}

	i.logger.InfoContext(ctx, "Run started from queue",
		"run_id", run.ID,
		"transcripts", len(request.TranscriptIDs))

	return nil
}

func (i *Intake) Stop(ctx context.Context) error {
	i.logger.InfoContext(ctx, "Stopping run request intake")

	close(i.stopCh)
	i.wg.Wait()

	if i.client != nil {
		if err := i.client.Close(); err != nil {
			i.logger.ErrorContext(ctx, "Error closing Redis client", "error", err)
		}
	}

	return nil
}
