package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-engine/internal/dto"
	"github.com/noah-isme/timetable-engine/internal/models"
	"github.com/noah-isme/timetable-engine/internal/repository"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
	"github.com/noah-isme/timetable-engine/pkg/jobs"
	"github.com/noah-isme/timetable-engine/pkg/notify"
)

func TestGenerationTaskRunsToSuccess(t *testing.T) {
	runner := &runnerStub{resp: &dto.GenerateTimetableResponse{
		Report:       dto.GenerationReport{Success: true, TotalEntries: 4, PlacedEntries: 4},
		DraftVersion: "v-123",
		CreatedCount: 4,
	}}
	svc, queue := newTaskFixture(t, runner)
	defer queue.Stop()

	sub, err := svc.Submit(context.Background(), dto.GenerateTimetableRequest{TermID: "term-1"}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskPending, sub.State)

	status := waitForTerminal(t, svc, sub.TaskID)
	assert.Equal(t, models.TaskSucceeded, status.State)
	assert.Equal(t, "created 4 entries in v-123", status.Message)
	require.NotNil(t, status.Progress)
	assert.Equal(t, 4, status.Progress.Total)
	require.NotNil(t, status.ProgressPercentage)
	assert.Equal(t, 100.0, *status.ProgressPercentage)

	var result dto.GenerateTimetableResponse
	require.NoError(t, json.Unmarshal(status.Result, &result))
	assert.Equal(t, "v-123", result.DraftVersion)
	assert.Equal(t, 1, runner.calls)
	assert.Equal(t, [][2]int{{1, 4}, {4, 4}}, runner.reported)
}

func TestGenerationTaskAnnouncesDraftVersion(t *testing.T) {
	runner := &runnerStub{resp: &dto.GenerateTimetableResponse{
		Report:       dto.GenerationReport{Success: true, TotalEntries: 2, PlacedEntries: 2},
		DraftVersion: "v-9",
		CreatedCount: 2,
	}}
	svc, queue := newTaskFixture(t, runner)
	defer queue.Stop()
	publisher := &publisherStub{}
	svc.AttachNotifier(publisher)

	sub, err := svc.Submit(context.Background(), dto.GenerateTimetableRequest{TermID: "term-1"}, "user-1")
	require.NoError(t, err)
	waitForTerminal(t, svc, sub.TaskID)

	require.Eventually(t, func() bool {
		return len(publisher.published()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{notify.EventGenerated}, publisher.published())
}

func TestGenerationTaskFailureIsRecorded(t *testing.T) {
	runner := &runnerStub{err: &EntryCreationError{DraftVersion: "v-1", Err: errors.New("commit failed")}}
	svc, queue := newTaskFixture(t, runner)
	defer queue.Stop()

	sub, err := svc.Submit(context.Background(), dto.GenerateTimetableRequest{TermID: "term-1"}, "user-1")
	require.NoError(t, err)

	status := waitForTerminal(t, svc, sub.TaskID)
	assert.Equal(t, models.TaskFailed, status.State)
	assert.Contains(t, status.Error, "commit failed")
	assert.Equal(t, 1, runner.calls)
}

func TestGenerationTaskPanicBecomesFailed(t *testing.T) {
	runner := &runnerStub{panicWith: "solver exploded"}
	svc, queue := newTaskFixture(t, runner)
	defer queue.Stop()

	sub, err := svc.Submit(context.Background(), dto.GenerateTimetableRequest{TermID: "term-1"}, "user-1")
	require.NoError(t, err)

	status := waitForTerminal(t, svc, sub.TaskID)
	assert.Equal(t, models.TaskFailed, status.State)
	assert.Contains(t, status.Error, "solver exploded")
}

func TestGenerationTaskStatusUnknown(t *testing.T) {
	svc, queue := newTaskFixture(t, &runnerStub{})
	defer queue.Stop()

	_, err := svc.Status(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.Status(context.Background(), "")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestGenerationTaskSubmitWithoutQueue(t *testing.T) {
	svc := NewGenerationTaskService(&runnerStub{}, repository.NewMemoryTaskStatusRepository(time.Hour), nil, nil, zap.NewNop())
	_, err := svc.Submit(context.Background(), dto.GenerateTimetableRequest{}, "user-1")
	assert.ErrorIs(t, err, appErrors.ErrUnavailable)
}

func TestGenerationTaskQueueFullMarksFailed(t *testing.T) {
	store := repository.NewMemoryTaskStatusRepository(time.Hour)
	svc := NewGenerationTaskService(&runnerStub{}, store, nil, nil, zap.NewNop())
	enq := &enqueuerStub{err: jobs.ErrQueueFull}
	svc.AttachQueue(enq)

	_, err := svc.Submit(context.Background(), dto.GenerateTimetableRequest{}, "user-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrUnavailable)
	require.Len(t, enq.jobs, 1)

	task, err := store.Get(context.Background(), enq.jobs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskFailed, task.State)
}

func TestGenerationTaskRejectsInvalidScope(t *testing.T) {
	svc, queue := newTaskFixture(t, &runnerStub{})
	defer queue.Stop()

	_, err := svc.Submit(context.Background(), dto.GenerateTimetableRequest{ClassGroupIDs: []string{""}}, "user-1")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

// --- Fixtures ---

func newTaskFixture(t *testing.T, runner *runnerStub) (*GenerationTaskService, *jobs.Queue) {
	t.Helper()
	svc := NewGenerationTaskService(runner, repository.NewMemoryTaskStatusRepository(time.Hour), nil, nil, zap.NewNop())
	svc.progressInterval = 0
	queue := jobs.NewQueue("generation-test", svc.Handle, jobs.QueueConfig{
		Workers:        1,
		DisableRetries: true,
		OnFailure:      svc.OnFailure,
		Logger:         zap.NewNop(),
	})
	queue.Start(context.Background())
	svc.AttachQueue(queue)
	return svc, queue
}

func waitForTerminal(t *testing.T, svc *GenerationTaskService, taskID string) *dto.TaskStatusResponse {
	t.Helper()
	var status *dto.TaskStatusResponse
	require.Eventually(t, func() bool {
		var err error
		status, err = svc.Status(context.Background(), taskID)
		return err == nil && status.State.Terminal()
	}, 2*time.Second, 5*time.Millisecond)
	return status
}

type runnerStub struct {
	resp      *dto.GenerateTimetableResponse
	err       error
	panicWith string
	calls     int
	reported  [][2]int
}

func (r *runnerStub) Run(_ context.Context, _ dto.GenerateTimetableRequest, progress ProgressFunc) (*dto.GenerateTimetableResponse, error) {
	r.calls++
	if r.panicWith != "" {
		panic(r.panicWith)
	}
	if r.err != nil {
		return nil, r.err
	}
	total := r.resp.Report.TotalEntries
	for _, current := range []int{1, total} {
		progress(current, total)
		r.reported = append(r.reported, [2]int{current, total})
	}
	return r.resp, nil
}

type enqueuerStub struct {
	jobs []jobs.Job
	err  error
}

func (e *enqueuerStub) Enqueue(job jobs.Job) error {
	e.jobs = append(e.jobs, job)
	return e.err
}
