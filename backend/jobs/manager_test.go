package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnpath/backend/services"
)

type fakeClient struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (c *fakeClient) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.tasks = append(c.tasks, task)
	c.opts = append(c.opts, opts)
	return &asynq.TaskInfo{ID: "t1"}, nil
}

type sinkNotifier struct {
	got []services.AttemptFailure
}

func (s *sinkNotifier) AttemptFailedByUser(_ context.Context, f services.AttemptFailure) {
	s.got = append(s.got, f)
}

func optionValues(opts []asynq.Option) map[asynq.OptionType]interface{} {
	out := map[asynq.OptionType]interface{}{}
	for _, o := range opts {
		out[o.Type()] = o.Value()
	}
	return out
}

func TestAttemptFailedByUser_Enqueues(t *testing.T) {
	client := &fakeClient{}
	var buf bytes.Buffer
	jm := newJobManager(client, "notify", log.New(&buf, "", 0))

	failure := services.AttemptFailure{TestID: 3, UserID: 7, AttemptID: 11}
	jm.AttemptFailedByUser(context.Background(), failure)

	require.Len(t, client.tasks, 1)
	assert.Equal(t, TypeAttemptFailed, client.tasks[0].Type())

	var payload services.AttemptFailure
	require.NoError(t, json.Unmarshal(client.tasks[0].Payload(), &payload))
	assert.Equal(t, failure, payload)

	opts := optionValues(client.opts[0])
	assert.Equal(t, "notify", opts[asynq.QueueOpt])
	assert.Equal(t, 3, opts[asynq.MaxRetryOpt])
	assert.Equal(t, 30*time.Second, opts[asynq.TimeoutOpt])
	assert.Equal(t, "attempt-failed:11", opts[asynq.TaskIDOpt])
	assert.Contains(t, buf.String(), "Queued attempt failure")
}

func TestAttemptFailedByUser_LogsEnqueueErrors(t *testing.T) {
	var buf bytes.Buffer
	jm := newJobManager(&fakeClient{err: asynq.ErrTaskIDConflict}, "", log.New(&buf, "", 0))
	jm.AttemptFailedByUser(context.Background(), services.AttemptFailure{AttemptID: 5})
	assert.Contains(t, buf.String(), "already queued: attempt=5")

	buf.Reset()
	jm = newJobManager(&fakeClient{err: errors.New("redis down")}, "", log.New(&buf, "", 0))
	jm.AttemptFailedByUser(context.Background(), services.AttemptFailure{AttemptID: 6})
	assert.Contains(t, buf.String(), "redis down")
	assert.Equal(t, "default", jm.queue)
}

func TestHandleAttemptFailed(t *testing.T) {
	jm := newJobManager(&fakeClient{}, "", log.New(&bytes.Buffer{}, "", 0))
	sink := &sinkNotifier{}
	handler := jm.handleAttemptFailed(sink)

	failure := services.AttemptFailure{TestID: 1, UserID: 2, AttemptID: 3}
	task, err := NewAttemptFailedTask(failure)
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), task))
	assert.Equal(t, []services.AttemptFailure{failure}, sink.got)

	err = handler(context.Background(), asynq.NewTask(TypeAttemptFailed, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	LogNotifier{Logger: log.New(&buf, "", 0)}.AttemptFailedByUser(context.Background(),
		services.AttemptFailure{TestID: 1, UserID: 2, AttemptID: 3})
	assert.Equal(t, "Attempt failed by user: test=1 user=2 attempt=3\n", buf.String())
}
