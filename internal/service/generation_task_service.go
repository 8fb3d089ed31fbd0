package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-engine/internal/dto"
	"github.com/noah-isme/timetable-engine/internal/models"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
	"github.com/noah-isme/timetable-engine/pkg/jobs"
	"github.com/noah-isme/timetable-engine/pkg/notify"
)

const (
	// GenerationJobType tags queued generation jobs.
	GenerationJobType = "timetable.generate"

	defaultProgressInterval = 500 * time.Millisecond
)

type taskStore interface {
	Save(ctx context.Context, task *models.GenerationTask) error
	Get(ctx context.Context, id string) (*models.GenerationTask, error)
}

type generationRunner interface {
	Run(ctx context.Context, req dto.GenerateTimetableRequest, progress ProgressFunc) (*dto.GenerateTimetableResponse, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type generationJob struct {
	Request     dto.GenerateTimetableRequest
	RequestedBy string
}

// GenerationTaskService runs generation off the request path. Each
// submitted task runs at most once; failures and panics end in FAILED.
type GenerationTaskService struct {
	runner    generationRunner
	store     taskStore
	queue     jobEnqueuer
	validator *validator.Validate
	metrics   *MetricsService
	notifier  notify.Publisher
	logger    *zap.Logger
	now       func() time.Time

	progressInterval time.Duration
}

// NewGenerationTaskService constructs the async wrapper. The queue is
// attached separately because its handler is this service.
func NewGenerationTaskService(runner generationRunner, store taskStore, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *GenerationTaskService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerationTaskService{
		runner:           runner,
		store:            store,
		validator:        validate,
		metrics:          metrics,
		notifier:         notify.NopPublisher{},
		logger:           logger,
		now:              time.Now,
		progressInterval: defaultProgressInterval,
	}
}

// AttachQueue sets the queue jobs are submitted to.
func (s *GenerationTaskService) AttachQueue(queue jobEnqueuer) {
	s.queue = queue
}

// AttachNotifier announces new draft versions created by background runs.
func (s *GenerationTaskService) AttachNotifier(notifier notify.Publisher) {
	if notifier != nil {
		s.notifier = notifier
	}
}

// Submit stores a PENDING task and enqueues it.
func (s *GenerationTaskService) Submit(ctx context.Context, req dto.GenerateTimetableRequest, requestedBy string) (*dto.TaskSubmission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generation scope")
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "background generation is disabled")
	}

	now := s.now().UTC()
	task := &models.GenerationTask{
		ID:          uuid.NewString(),
		State:       models.TaskPending,
		Message:     "queued",
		RequestedBy: requestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.save(ctx, task); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record generation task")
	}

	job := jobs.Job{
		ID:       task.ID,
		Type:     GenerationJobType,
		Payload:  generationJob{Request: req, RequestedBy: requestedBy},
		Enqueued: now,
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.markFailed(context.Background(), task.ID, err)
		if errors.Is(err, jobs.ErrQueueFull) {
			return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "generation queue is full")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "generation queue unavailable")
	}

	s.metrics.RecordTask(string(models.TaskPending))
	s.logger.Sugar().Infow("generation task queued", "task_id", task.ID, "requested_by", requestedBy, "term_id", req.TermID)
	return &dto.TaskSubmission{TaskID: task.ID, State: task.State}, nil
}

// Status returns the task with a progress percentage when known.
func (s *GenerationTaskService) Status(ctx context.Context, taskID string) (*dto.TaskStatusResponse, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "task_id is required")
	}
	task, err := s.store.Get(ctx, taskID)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "generation task not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load generation task")
	}

	resp := &dto.TaskStatusResponse{
		TaskID:  task.ID,
		State:   task.State,
		Message: task.Message,
		Result:  task.Result,
		Error:   task.Error,
	}
	if task.Total > 0 {
		resp.Progress = &dto.TaskProgress{Current: task.Current, Total: task.Total}
		pct := math.Round(float64(task.Current)/float64(task.Total)*1000) / 10
		resp.ProgressPercentage = &pct
	}
	return resp, nil
}

// Handle is the jobs.Handler for generation jobs.
func (s *GenerationTaskService) Handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(generationJob)
	if !ok {
		return fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.ID)
	}
	task, err := s.store.Get(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("load task %s: %w", job.ID, err)
	}
	if task.State.Terminal() {
		s.logger.Sugar().Warnw("generation task already finished", "task_id", task.ID, "state", task.State)
		return nil
	}

	task.State = models.TaskRunning
	task.Message = "generating timetable"
	if err := s.save(ctx, task); err != nil {
		return err
	}
	s.metrics.RecordTask(string(models.TaskRunning))
	s.logger.Sugar().Infow("generation task started", "task_id", task.ID, "requested_by", payload.RequestedBy)

	var (
		mu       sync.Mutex
		lastSave time.Time
	)
	progress := func(current, total int) {
		mu.Lock()
		defer mu.Unlock()
		task.Current, task.Total = current, total
		now := s.now()
		if current < total && now.Sub(lastSave) < s.progressInterval {
			return
		}
		lastSave = now
		if err := s.save(ctx, task); err != nil {
			s.logger.Sugar().Warnw("generation progress not saved", "task_id", task.ID, "error", err)
		}
	}

	resp, err := s.runner.Run(ctx, payload.Request, progress)
	if err != nil {
		return err
	}
	result, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode generation result: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	task.State = models.TaskSucceeded
	task.Result = result
	task.Total = resp.Report.TotalEntries
	task.Current = resp.Report.PlacedEntries
	switch {
	case !resp.Report.Success:
		task.Message = fmt.Sprintf("no feasible timetable: %d of %d sessions unplaced", resp.Report.UnplacedEntries, resp.Report.TotalEntries)
	case resp.DraftVersion != "":
		task.Message = fmt.Sprintf("created %d entries in %s", resp.CreatedCount, resp.DraftVersion)
	default:
		task.Message = "timetable generated"
	}
	if err := s.save(ctx, task); err != nil {
		return err
	}
	s.metrics.RecordTask(string(models.TaskSucceeded))
	s.logger.Sugar().Infow("generation task finished", "task_id", task.ID, "message", task.Message)
	if resp.DraftVersion != "" {
		event := map[string]interface{}{"task_id": task.ID, "draft_version": resp.DraftVersion, "created_count": resp.CreatedCount}
		if err := s.notifier.Publish(ctx, notify.EventGenerated, event); err != nil {
			s.logger.Sugar().Warnw("generation event not published", "task_id", task.ID, "error", err)
		}
	}
	return nil
}

// OnFailure marks the task FAILED; wire it as the queue failure hook.
func (s *GenerationTaskService) OnFailure(job jobs.Job, err error) {
	s.markFailed(context.Background(), job.ID, err)
}

func (s *GenerationTaskService) markFailed(ctx context.Context, taskID string, cause error) {
	task, err := s.store.Get(ctx, taskID)
	if err != nil {
		s.logger.Sugar().Errorw("generation task lost", "task_id", taskID, "error", err, "cause", cause)
		return
	}
	task.State = models.TaskFailed
	task.Message = "generation failed"
	task.Error = failureMessage(cause)
	if err := s.save(ctx, task); err != nil {
		s.logger.Sugar().Errorw("generation task failure not saved", "task_id", taskID, "error", err)
	}
	s.metrics.RecordTask(string(models.TaskFailed))
	s.logger.Sugar().Errorw("generation task failed", "task_id", taskID, "error", cause)
}

func (s *GenerationTaskService) save(ctx context.Context, task *models.GenerationTask) error {
	task.UpdatedAt = s.now().UTC()
	start := time.Now()
	err := s.store.Save(ctx, task)
	s.metrics.ObserveTaskStore(time.Since(start))
	if err != nil {
		return fmt.Errorf("save task %s: %w", task.ID, err)
	}
	return nil
}

func failureMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	var creationErr *EntryCreationError
	if errors.As(err, &creationErr) {
		return fmt.Sprintf("%d entries created, %d failed: %v", creationErr.Created, len(creationErr.Failures), creationErr.Err)
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
