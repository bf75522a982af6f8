package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"learnpath/backend/services"
)

const (
	TypeAttemptFailed = "attempt:failed"

	attemptFailedRetries = 3
	attemptFailedTimeout = 30 * time.Second
)

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// JobManager publishes attempt-failure signals to Redis and runs the worker
// that delivers them. It satisfies services.Notifier.
type JobManager struct {
	client enqueuer
	closer func() error
	server *asynq.Server
	mux    *asynq.ServeMux
	queue  string
	logger *log.Logger
}

func NewJobManager(redisURL, queue string, logger *log.Logger) *JobManager {
	redisOpt := asynq.RedisClientOpt{Addr: strings.TrimPrefix(redisURL, "redis://")}
	client := asynq.NewClient(redisOpt)

	jm := newJobManager(client, queue, logger)
	jm.closer = client.Close
	jm.server = asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 5,
		Queues:      map[string]int{jm.queue: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			jm.logger.Printf("Job failed: type=%s error=%v", task.Type(), err)
		}),
		Logger: &asynqLogger{logger: jm.logger},
	})
	return jm
}

func newJobManager(client enqueuer, queue string, logger *log.Logger) *JobManager {
	if queue == "" {
		queue = "default"
	}
	if logger == nil {
		logger = log.Default()
	}
	return &JobManager{
		client: client,
		mux:    asynq.NewServeMux(),
		queue:  queue,
		logger: logger,
	}
}

// RegisterHandlers routes delivered signals to sink.
func (jm *JobManager) RegisterHandlers(sink services.Notifier) {
	jm.mux.HandleFunc(TypeAttemptFailed, jm.handleAttemptFailed(sink))
}

func (jm *JobManager) Start() error {
	jm.logger.Println("Starting job queue worker...")
	return jm.server.Run(jm.mux)
}

func (jm *JobManager) Stop() {
	jm.logger.Println("Stopping job queue...")
	if jm.server != nil {
		jm.server.Shutdown()
	}
	if jm.closer != nil {
		jm.closer()
	}
}

// NewAttemptFailedTask builds the task for one failed final attempt.
func NewAttemptFailedTask(f services.AttemptFailure) (*asynq.Task, error) {
	payload, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal attempt payload: %w", err)
	}
	return asynq.NewTask(TypeAttemptFailed, payload), nil
}

// AttemptFailedByUser enqueues the signal. The task id is derived from the
// attempt so a repeated enqueue is rejected by the broker.
func (jm *JobManager) AttemptFailedByUser(ctx context.Context, f services.AttemptFailure) {
	task, err := NewAttemptFailedTask(f)
	if err != nil {
		jm.logger.Printf("Dropping attempt failure signal: %v", err)
		return
	}

	info, err := jm.client.EnqueueContext(ctx, task,
		asynq.Queue(jm.queue),
		asynq.MaxRetry(attemptFailedRetries),
		asynq.Timeout(attemptFailedTimeout),
		asynq.TaskID(attemptTaskID(f.AttemptID)),
	)
	switch {
	case errors.Is(err, asynq.ErrTaskIDConflict):
		jm.logger.Printf("Attempt failure already queued: attempt=%d", f.AttemptID)
	case err != nil:
		jm.logger.Printf("Failed to enqueue attempt failure: attempt=%d error=%v", f.AttemptID, err)
	default:
		jm.logger.Printf("Queued attempt failure: ID=%s test=%d user=%d attempt=%d",
			info.ID, f.TestID, f.UserID, f.AttemptID)
	}
}

func (jm *JobManager) handleAttemptFailed(sink services.Notifier) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var f services.AttemptFailure
		if err := json.Unmarshal(task.Payload(), &f); err != nil {
			return fmt.Errorf("failed to unmarshal attempt payload: %v: %w", err, asynq.SkipRetry)
		}
		sink.AttemptFailedByUser(ctx, f)
		return nil
	}
}

func attemptTaskID(attemptID uint) string {
	return fmt.Sprintf("attempt-failed:%d", attemptID)
}

// LogNotifier writes failure signals to the log. Used when no Redis is
// configured, and as the worker's delivery sink.
type LogNotifier struct {
	Logger *log.Logger
}

func (n LogNotifier) AttemptFailedByUser(_ context.Context, f services.AttemptFailure) {
	logger := n.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("Attempt failed by user: test=%d user=%d attempt=%d", f.TestID, f.UserID, f.AttemptID)
}

type asynqLogger struct {
	logger *log.Logger
}

func (l *asynqLogger) Debug(args ...interface{}) {}

func (l *asynqLogger) Info(args ...interface{}) {
	l.logger.Print(fmt.Sprint(args...))
}

func (l *asynqLogger) Warn(args ...interface{}) {
	l.logger.Print("WARN ", fmt.Sprint(args...))
}

func (l *asynqLogger) Error(args ...interface{}) {
	l.logger.Print("ERROR ", fmt.Sprint(args...))
}

func (l *asynqLogger) Fatal(args ...interface{}) {
	l.logger.Fatal(args...)
}
