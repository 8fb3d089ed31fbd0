package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-engine/internal/dto"
	"github.com/noah-isme/timetable-engine/internal/models"
	"github.com/noah-isme/timetable-engine/internal/repository"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
)

// GenerationState tracks one generation run.
type GenerationState string

const (
	GenerationConfigured     GenerationState = "CONFIGURED"
	GenerationGenerating     GenerationState = "GENERATING"
	GenerationSucceeded      GenerationState = "SUCCEEDED"
	GenerationFailed         GenerationState = "FAILED"
	GenerationEntriesCreated GenerationState = "ENTRIES_CREATED"
	GenerationCreationFailed GenerationState = "CREATION_FAILED"
)

// Reasons reported for unplaced sessions.
const (
	ReasonNoTrainerAvailability = "no trainer availability"
	ReasonNoAvailableRoom       = "no available room"
	ReasonNoAvailableSlot       = "no available slot"
	ReasonSearchLimit           = "search limit reached"
	ReasonInfeasible            = "not scheduled: no feasible timetable"
)

// publishedRefPrefix tags interval index refs of out-of-scope published entries.
const publishedRefPrefix = "published:"

// ErrEntryValidation marks a placement rejected before or during insert
// because its references are no longer valid.
var ErrEntryValidation = errors.New("timetable entry validation failed")

// EntryCreationError is returned when persisting a generated timetable fails
// as a whole. It is distinct from validation errors.
type EntryCreationError struct {
	DraftVersion string
	Created      int
	Failures     []dto.EntryFailure
	Err          error
}

func (e *EntryCreationError) Error() string {
	return fmt.Sprintf("create timetable entries for %s: %d created, %d failed: %v", e.DraftVersion, e.Created, len(e.Failures), e.Err)
}

func (e *EntryCreationError) Unwrap() error {
	return e.Err
}

// GenerationScope selects the enrollments a run must place. TermID is
// inferred from the first enrollment in scope when empty.
type GenerationScope struct {
	TermID        string
	ClassGroupIDs []string
	DepartmentIDs []string
	SchoolID      *string
}

// GeneratorConfig bounds the search.
type GeneratorConfig struct {
	// MaxBacktracks stops the search after this many undo steps; 0 means unbounded.
	MaxBacktracks int
	// MaxCandidatesPerSession caps the (slot, room) pairs tried per session; 0 means all.
	MaxCandidatesPerSession int
}

// ProgressFunc receives the number of sessions placed so far and the total.
type ProgressFunc func(current, total int)

type generatorEnrollmentReader interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.CourseEnrollment, error)
}

type generatorRoomReader interface {
	List(ctx context.Context, filter models.RoomFilter) ([]models.Room, error)
}

type availabilityReader interface {
	ListByTrainers(ctx context.Context, trainerIDs []string) ([]models.TrainerAvailability, error)
}

type settingsReader interface {
	Get(ctx context.Context, termID string, schoolID *string) (*models.TimetableSettings, error)
}

type generatorEntryStore interface {
	List(ctx context.Context, exec sqlx.ExtContext, filter models.EntryFilter) ([]models.TimetableEntryDetail, error)
	InsertInSavepoint(ctx context.Context, tx sqlx.ExtContext, entry *models.TimetableEntry) error
	LockVersion(ctx context.Context, exec sqlx.ExtContext, version string) error
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// TimetableGenerationService builds generation runs over a data snapshot.
type TimetableGenerationService struct {
	enrollments  generatorEnrollmentReader
	rooms        generatorRoomReader
	availability availabilityReader
	settings     settingsReader
	entries      generatorEntryStore
	tx           txProvider
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	cfg          GeneratorConfig
}

// NewTimetableGenerationService wires the generator.
func NewTimetableGenerationService(
	enrollments generatorEnrollmentReader,
	rooms generatorRoomReader,
	availability availabilityReader,
	settings settingsReader,
	entries generatorEntryStore,
	tx txProvider,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg GeneratorConfig,
) *TimetableGenerationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableGenerationService{
		enrollments:  enrollments,
		rooms:        rooms,
		availability: availability,
		settings:     settings,
		entries:      entries,
		tx:           tx,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		cfg:          cfg,
	}
}

// NewRun creates a run in CONFIGURED state.
func (s *TimetableGenerationService) NewRun(scope GenerationScope) *GenerationRun {
	return &GenerationRun{svc: s, scope: scope, state: GenerationConfigured}
}

// Run validates the request, generates, and unless DryRun persists the
// result as a new draft version.
func (s *TimetableGenerationService) Run(ctx context.Context, req dto.GenerateTimetableRequest, progress ProgressFunc) (*dto.GenerateTimetableResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generation scope")
	}
	run := s.NewRun(GenerationScope{
		TermID:        req.TermID,
		ClassGroupIDs: req.ClassGroupIDs,
		DepartmentIDs: req.DepartmentIDs,
		SchoolID:      req.SchoolID,
	})
	run.OnProgress(progress)

	ok, err := run.Generate(ctx)
	if err != nil {
		return nil, err
	}
	resp := &dto.GenerateTimetableResponse{FailedEntries: []dto.EntryFailure{}}
	if ok && !req.DryRun {
		created, err := run.CreateEntries(ctx)
		if err != nil {
			return nil, err
		}
		resp.CreatedCount = created
		resp.DraftVersion = run.DraftVersion()
		resp.FailedEntries = run.Failures()
	}
	resp.Report = run.Report()
	return resp, nil
}

type session struct {
	enrollment *models.CourseEnrollment
	ordinal    int
	minutes    int
	slots      []slotCandidate
	reason     string
}

func (s *session) ref() string {
	return s.enrollment.ID + "#" + strconv.Itoa(s.ordinal)
}

type slotCandidate struct {
	day   models.DayOfWeek
	start models.ClockTime
	end   models.ClockTime
	rooms []string
}

type assignment struct {
	day    models.DayOfWeek
	start  models.ClockTime
	end    models.ClockTime
	roomID string
}

// GenerationRun is one CONFIGURED -> GENERATING -> SUCCEEDED|FAILED pass,
// optionally followed by ENTRIES_CREATED or CREATION_FAILED. A run is not
// safe for concurrent use.
type GenerationRun struct {
	svc      *TimetableGenerationService
	scope    GenerationScope
	state    GenerationState
	progress ProgressFunc

	termID      string
	settings    models.TimetableSettings
	sessions    []*session
	index       *intervalIndex
	assigned    []*assignment
	watermark   int
	backtracks  int
	evaluated   int
	limitHit    bool
	unplaced    []dto.UnplacedSession
	startedAt   time.Time
	finishedAt  time.Time
	version     string
	failures    []dto.EntryFailure
	createdRows int
}

// OnProgress registers a callback invoked as the deepest placement grows.
func (r *GenerationRun) OnProgress(fn ProgressFunc) {
	r.progress = fn
}

// State returns the current run state.
func (r *GenerationRun) State() GenerationState {
	return r.state
}

// DraftVersion returns the version minted by CreateEntries.
func (r *GenerationRun) DraftVersion() string {
	return r.version
}

// Failures lists placements that could not be persisted.
func (r *GenerationRun) Failures() []dto.EntryFailure {
	out := make([]dto.EntryFailure, len(r.failures))
	copy(out, r.failures)
	return out
}

// Generate computes an assignment in memory. Infeasibility returns false
// without error; errors are reserved for invalid scope and data access.
func (r *GenerationRun) Generate(ctx context.Context) (bool, error) {
	if r.state != GenerationConfigured {
		return false, appErrors.Clone(appErrors.ErrPreconditionFailed, "generation already ran")
	}
	r.state = GenerationGenerating
	r.startedAt = time.Now().UTC()

	if err := r.loadSnapshot(ctx); err != nil {
		r.state = GenerationFailed
		r.finishedAt = time.Now().UTC()
		r.svc.metrics.ObserveGeneration("error", r.finishedAt.Sub(r.startedAt), 0, 0)
		return false, err
	}

	r.svc.logger.Sugar().Infow("timetable generation started",
		"term_id", r.termID,
		"class_group_ids", r.scope.ClassGroupIDs,
		"department_ids", r.scope.DepartmentIDs,
		"sessions", len(r.sessions),
	)

	ok := r.search()
	r.finishedAt = time.Now().UTC()
	if ok {
		r.state = GenerationSucceeded
	} else {
		r.state = GenerationFailed
		r.collectUnplaced()
	}
	r.notifyProgress(r.placedCount())

	outcome := "succeeded"
	if !ok {
		outcome = "infeasible"
		if r.limitHit {
			outcome = "search_limit"
		}
	}
	r.svc.metrics.ObserveGeneration(outcome, r.finishedAt.Sub(r.startedAt), len(r.unplaced), r.backtracks)
	r.svc.logger.Sugar().Infow("timetable generation finished",
		"term_id", r.termID,
		"outcome", outcome,
		"placed", r.placedCount(),
		"unplaced", len(r.unplaced),
		"backtracks", r.backtracks,
		"duration", r.finishedAt.Sub(r.startedAt),
	)
	return ok, nil
}

// Report summarises the run at any state.
func (r *GenerationRun) Report() dto.GenerationReport {
	report := dto.GenerationReport{
		State:               string(r.state),
		Success:             r.state == GenerationSucceeded || r.state == GenerationEntriesCreated,
		TermID:              r.termID,
		TotalEntries:        len(r.sessions),
		PlacedEntries:       r.placedCount(),
		Unplaced:            append([]dto.UnplacedSession{}, r.unplaced...),
		Backtracks:          r.backtracks,
		CandidatesEvaluated: r.evaluated,
	}
	if r.state == GenerationCreationFailed {
		report.Success = false
	}
	report.UnplacedEntries = len(report.Unplaced)
	if report.Success {
		report.Placements = r.placements()
	}
	if !r.startedAt.IsZero() {
		started := r.startedAt
		report.StartedAt = &started
	}
	if !r.finishedAt.IsZero() {
		finished := r.finishedAt
		report.FinishedAt = &finished
		report.DurationMs = r.finishedAt.Sub(r.startedAt).Milliseconds()
	}
	return report
}

// CreateEntries persists the solution as draft rows under a fresh version.
// Row-level failures are recorded and skipped; an *EntryCreationError is
// returned when the batch cannot continue or nothing could be saved.
func (r *GenerationRun) CreateEntries(ctx context.Context) (int, error) {
	if r.state != GenerationSucceeded {
		return 0, appErrors.Clone(appErrors.ErrPreconditionFailed, "timetable generation has not succeeded")
	}
	planned := r.placements()
	if len(planned) == 0 {
		r.state = GenerationEntriesCreated
		return 0, nil
	}

	r.version = "v-" + uuid.NewString()
	r.failures = nil
	r.createdRows = 0

	fail := func(err error) (int, error) {
		r.state = GenerationCreationFailed
		r.svc.logger.Sugar().Errorw("timetable entry creation failed",
			"draft_version", r.version, "created", r.createdRows, "failed", len(r.failures), "error", err)
		return r.createdRows, &EntryCreationError{DraftVersion: r.version, Created: r.createdRows, Failures: r.Failures(), Err: err}
	}

	tx, err := r.svc.tx.BeginTxx(ctx, nil)
	if err != nil {
		return fail(fmt.Errorf("begin transaction: %w", err))
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := r.svc.entries.LockVersion(ctx, tx, r.version); err != nil {
		return fail(err)
	}

	for _, p := range planned {
		entry := &models.TimetableEntry{
			CourseEnrollmentID: p.CourseEnrollmentID,
			DayOfWeek:          p.DayOfWeek,
			StartTime:          p.StartTime,
			EndTime:            p.EndTime,
			RoomID:             p.RoomID,
			IsDraft:            true,
			DraftVersion:       r.version,
		}
		if err := validatePlacement(entry); err != nil {
			r.recordFailure(p, err)
			continue
		}
		if err := r.svc.entries.InsertInSavepoint(ctx, tx, entry); err != nil {
			if errors.Is(err, repository.ErrBatchAborted) {
				r.recordFailure(p, err)
				r.createdRows = 0
				return fail(err)
			}
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code.Class() == "23" {
				err = fmt.Errorf("%w: %s", ErrEntryValidation, pqErr.Message)
			}
			r.recordFailure(p, err)
			continue
		}
		r.createdRows++
	}

	if r.createdRows == 0 {
		return fail(errors.New("no timetable entries could be saved"))
	}
	if err := tx.Commit(); err != nil {
		r.createdRows = 0
		return fail(fmt.Errorf("commit transaction: %w", err))
	}
	committed = true
	r.state = GenerationEntriesCreated

	r.svc.logger.Sugar().Infow("timetable entries created",
		"draft_version", r.version, "created", r.createdRows, "failed", len(r.failures))
	return r.createdRows, nil
}

func (r *GenerationRun) recordFailure(p dto.PlannedSession, err error) {
	r.failures = append(r.failures, dto.EntryFailure{
		CourseEnrollmentID: p.CourseEnrollmentID,
		SessionIndex:       p.SessionIndex,
		Error:              err.Error(),
	})
	r.svc.logger.Sugar().Warnw("timetable entry skipped",
		"course_enrollment_id", p.CourseEnrollmentID, "session", p.SessionIndex, "error", err)
}

func validatePlacement(entry *models.TimetableEntry) error {
	switch {
	case entry.CourseEnrollmentID == "":
		return fmt.Errorf("%w: course enrollment is required", ErrEntryValidation)
	case entry.RoomID == "":
		return fmt.Errorf("%w: room is required", ErrEntryValidation)
	case !entry.DayOfWeek.Valid():
		return fmt.Errorf("%w: invalid day %q", ErrEntryValidation, entry.DayOfWeek)
	case entry.StartTime >= entry.EndTime:
		return fmt.Errorf("%w: start must be before end", ErrEntryValidation)
	}
	return nil
}

func (r *GenerationRun) loadSnapshot(ctx context.Context) error {
	filter := models.EnrollmentFilter{
		TermID:        r.scope.TermID,
		ClassGroupIDs: r.scope.ClassGroupIDs,
		DepartmentIDs: r.scope.DepartmentIDs,
		SchoolID:      r.scope.SchoolID,
	}
	enrollments, err := r.svc.enrollments.List(ctx, filter)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course enrollments")
	}
	sortEnrollments(enrollments)

	r.termID = r.scope.TermID
	if r.termID == "" && len(enrollments) > 0 {
		r.termID = enrollments[0].TermID
	}
	inScope := enrollments[:0]
	for _, e := range enrollments {
		if e.TermID == r.termID {
			inScope = append(inScope, e)
		}
	}
	enrollments = inScope
	r.index = newIntervalIndex()
	if len(enrollments) == 0 {
		return nil
	}

	settings, err := r.svc.settings.Get(ctx, r.termID, r.scope.SchoolID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		r.settings = models.DefaultTimetableSettings(r.termID)
	case err != nil:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable settings")
	default:
		r.settings = *settings
	}
	if err := r.settings.Validate(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable settings")
	}
	breaks, _ := r.settings.BreakWindows()

	rooms, err := r.svc.rooms.List(ctx, models.RoomFilter{SchoolID: r.scope.SchoolID, ActiveOnly: true})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rooms")
	}
	sortRooms(rooms)

	trainerIDs := make([]string, 0)
	seenTrainer := make(map[string]struct{})
	scopeIDs := make(map[string]struct{}, len(enrollments))
	for _, e := range enrollments {
		scopeIDs[e.ID] = struct{}{}
		if _, ok := seenTrainer[e.TrainerID]; !ok {
			seenTrainer[e.TrainerID] = struct{}{}
			trainerIDs = append(trainerIDs, e.TrainerID)
		}
	}
	windows, err := r.svc.availability.ListByTrainers(ctx, trainerIDs)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load trainer availability")
	}
	availability := mergeAvailability(windows)

	published, err := r.svc.entries.List(ctx, nil, models.EntryFilter{TermID: r.termID, PublishedOnly: true})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load published timetable")
	}
	for _, entry := range published {
		if _, ok := scopeIDs[entry.CourseEnrollmentID]; ok {
			continue
		}
		ref := publishedRefPrefix + entry.ID
		r.index.Add(AxisRoom, entry.RoomID, entry.DayOfWeek, entry.StartTime, entry.EndTime, ref)
		r.index.Add(AxisTrainer, entry.TrainerID, entry.DayOfWeek, entry.StartTime, entry.EndTime, ref)
		r.index.Add(AxisClassGroup, entry.ClassGroupID, entry.DayOfWeek, entry.StartTime, entry.EndTime, ref)
	}

	for i := range enrollments {
		e := &enrollments[i]
		count := e.SessionsPerWeek
		if count <= 0 {
			count = 1
		}
		minutes := e.SessionMinutes
		if minutes <= 0 {
			minutes = r.settings.SlotMinutes
		}
		eligible := eligibleRooms(rooms, e)
		for ordinal := 1; ordinal <= count; ordinal++ {
			sess := &session{enrollment: e, ordinal: ordinal, minutes: minutes}
			r.buildCandidates(sess, availability[e.TrainerID], eligible, breaks)
			r.sessions = append(r.sessions, sess)
		}
	}
	r.assigned = make([]*assignment, len(r.sessions))
	return nil
}

func (r *GenerationRun) buildCandidates(sess *session, windows map[models.DayOfWeek][]models.TimeWindow, rooms []string, breaks []models.TimeWindow) {
	if len(windows) == 0 {
		sess.reason = ReasonNoTrainerAvailability
		return
	}
	if len(rooms) == 0 {
		sess.reason = ReasonNoAvailableRoom
		return
	}

	e := sess.enrollment
	budget := r.svc.cfg.MaxCandidatesPerSession
	pairs := 0
	for _, day := range r.settings.Days() {
		dayWindows := windows[day]
		for start := r.settings.DayStart; start.Add(sess.minutes) <= r.settings.DayEnd; start = start.Add(r.settings.SlotMinutes) {
			end := start.Add(sess.minutes)
			if !withinAny(dayWindows, start, end) || overlapsAny(breaks, start, end) {
				continue
			}
			if r.index.Busy(AxisTrainer, e.TrainerID, day, start, end) || r.index.Busy(AxisClassGroup, e.ClassGroupID, day, start, end) {
				continue
			}
			var free []string
			for _, roomID := range rooms {
				if budget > 0 && pairs >= budget {
					break
				}
				if r.index.Busy(AxisRoom, roomID, day, start, end) {
					continue
				}
				free = append(free, roomID)
				pairs++
			}
			if len(free) > 0 {
				sess.slots = append(sess.slots, slotCandidate{day: day, start: start, end: end, rooms: free})
			}
		}
	}
	if len(sess.slots) == 0 {
		sess.reason = ReasonNoAvailableSlot
	}
}

func (r *GenerationRun) search() bool {
	if len(r.sessions) == 0 {
		return true
	}
	for _, s := range r.sessions {
		if s.reason != "" {
			return false
		}
	}
	return r.place(0)
}

func (r *GenerationRun) place(depth int) bool {
	if depth == len(r.sessions) {
		return true
	}
	sess := r.sessions[depth]
	for _, slot := range sess.slots {
		if !r.slotOpen(sess, slot) {
			continue
		}
		for _, roomID := range slot.rooms {
			r.evaluated++
			if r.index.Busy(AxisRoom, roomID, slot.day, slot.start, slot.end) {
				continue
			}
			r.assign(depth, slot, roomID)
			if depth+1 > r.watermark {
				r.watermark = depth + 1
				r.notifyProgress(r.watermark)
			}
			if r.forwardCheck(depth+1) && r.place(depth+1) {
				return true
			}
			r.unassign(depth)
			if r.limitHit {
				return false
			}
			r.backtracks++
			if max := r.svc.cfg.MaxBacktracks; max > 0 && r.backtracks >= max {
				r.limitHit = true
				return false
			}
		}
	}
	return false
}

func (r *GenerationRun) slotOpen(sess *session, slot slotCandidate) bool {
	e := sess.enrollment
	if r.index.Busy(AxisTrainer, e.TrainerID, slot.day, slot.start, slot.end) {
		return false
	}
	if r.index.Busy(AxisClassGroup, e.ClassGroupID, slot.day, slot.start, slot.end) {
		return false
	}
	if limit := r.settings.MaxSessionsPerDay; limit > 0 && r.index.Count(AxisClassGroup, e.ClassGroupID, slot.day) >= limit {
		return false
	}
	return true
}

// forwardCheck reports whether every session from depth on still has at
// least one open (slot, room) pair.
func (r *GenerationRun) forwardCheck(depth int) bool {
	for _, sess := range r.sessions[depth:] {
		if !r.hasOption(sess) {
			return false
		}
	}
	return true
}

func (r *GenerationRun) hasOption(sess *session) bool {
	for _, slot := range sess.slots {
		if !r.slotOpen(sess, slot) {
			continue
		}
		for _, roomID := range slot.rooms {
			if !r.index.Busy(AxisRoom, roomID, slot.day, slot.start, slot.end) {
				return true
			}
		}
	}
	return false
}

func (r *GenerationRun) assign(depth int, slot slotCandidate, roomID string) {
	sess := r.sessions[depth]
	ref := sess.ref()
	r.index.Add(AxisRoom, roomID, slot.day, slot.start, slot.end, ref)
	r.index.Add(AxisTrainer, sess.enrollment.TrainerID, slot.day, slot.start, slot.end, ref)
	r.index.Add(AxisClassGroup, sess.enrollment.ClassGroupID, slot.day, slot.start, slot.end, ref)
	r.assigned[depth] = &assignment{day: slot.day, start: slot.start, end: slot.end, roomID: roomID}
}

func (r *GenerationRun) unassign(depth int) {
	sess := r.sessions[depth]
	a := r.assigned[depth]
	if a == nil {
		return
	}
	ref := sess.ref()
	r.index.Remove(AxisRoom, a.roomID, a.day, ref)
	r.index.Remove(AxisTrainer, sess.enrollment.TrainerID, a.day, ref)
	r.index.Remove(AxisClassGroup, sess.enrollment.ClassGroupID, a.day, ref)
	r.assigned[depth] = nil
}

// collectUnplaced lists every session after a failed search. Sessions with
// their own blocking reason keep it; the session the search could not get
// past, and those sharing its trainer or class group, report no available
// slot; the rest were only collateral.
func (r *GenerationRun) collectUnplaced() {
	for i := range r.assigned {
		r.unassign(i)
	}

	var blocker *session
	if !r.limitHit && r.watermark < len(r.sessions) && !r.hasStaticFailure() {
		blocker = r.sessions[r.watermark]
	}

	r.unplaced = make([]dto.UnplacedSession, 0, len(r.sessions))
	for _, sess := range r.sessions {
		reason := sess.reason
		switch {
		case reason != "":
		case r.limitHit:
			reason = ReasonSearchLimit
		case blocker != nil && (sess == blocker ||
			sess.enrollment.TrainerID == blocker.enrollment.TrainerID ||
			sess.enrollment.ClassGroupID == blocker.enrollment.ClassGroupID):
			reason = ReasonNoAvailableSlot
		default:
			reason = ReasonInfeasible
		}
		unplaced := dto.UnplacedSession{
			CourseEnrollmentID: sess.enrollment.ID,
			SessionIndex:       sess.ordinal,
			CourseName:         sess.enrollment.CourseName,
			ClassGroupName:     sess.enrollment.ClassGroupName,
			TrainerName:        sess.enrollment.TrainerName,
			Reason:             reason,
		}
		if reason == ReasonNoAvailableSlot {
			unplaced.BlockedBy = r.blockingEntries(sess)
		}
		r.unplaced = append(r.unplaced, unplaced)
	}
}

// blockingEntries returns the ids of published entries that overlap any
// candidate slot of sess on its trainer, class group or eligible rooms. Call
// it once all in-scope placements are undone.
func (r *GenerationRun) blockingEntries(sess *session) []string {
	seen := make(map[string]struct{})
	collect := func(refs []string) {
		for _, ref := range refs {
			if id, ok := strings.CutPrefix(ref, publishedRefPrefix); ok {
				seen[id] = struct{}{}
			}
		}
	}
	e := sess.enrollment
	for _, slot := range sess.slots {
		collect(r.index.Overlapping(AxisTrainer, e.TrainerID, slot.day, slot.start, slot.end))
		collect(r.index.Overlapping(AxisClassGroup, e.ClassGroupID, slot.day, slot.start, slot.end))
		for _, roomID := range slot.rooms {
			collect(r.index.Overlapping(AxisRoom, roomID, slot.day, slot.start, slot.end))
		}
	}
	if len(seen) == 0 {
		return nil
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *GenerationRun) hasStaticFailure() bool {
	for _, s := range r.sessions {
		if s.reason != "" {
			return true
		}
	}
	return false
}

func (r *GenerationRun) placedCount() int {
	if r.state != GenerationSucceeded && r.state != GenerationEntriesCreated && r.state != GenerationCreationFailed {
		return 0
	}
	return len(r.sessions)
}

func (r *GenerationRun) placements() []dto.PlannedSession {
	out := make([]dto.PlannedSession, 0, len(r.sessions))
	for i, sess := range r.sessions {
		a := r.assigned[i]
		if a == nil {
			continue
		}
		out = append(out, dto.PlannedSession{
			CourseEnrollmentID: sess.enrollment.ID,
			SessionIndex:       sess.ordinal,
			DayOfWeek:          a.day,
			StartTime:          a.start,
			EndTime:            a.end,
			RoomID:             a.roomID,
		})
	}
	return out
}

func (r *GenerationRun) notifyProgress(current int) {
	if r.progress != nil {
		r.progress(current, len(r.sessions))
	}
}

func sortEnrollments(list []models.CourseEnrollment) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.CourseCode != b.CourseCode {
			return a.CourseCode < b.CourseCode
		}
		if a.CourseID != b.CourseID {
			return a.CourseID < b.CourseID
		}
		if a.ClassGroupID != b.ClassGroupID {
			return a.ClassGroupID < b.ClassGroupID
		}
		if a.TrainerID != b.TrainerID {
			return a.TrainerID < b.TrainerID
		}
		return a.ID < b.ID
	})
}

func sortRooms(list []models.Room) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Building != b.Building {
			return a.Building < b.Building
		}
		if a.Floor != b.Floor {
			return a.Floor < b.Floor
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
}

func eligibleRooms(rooms []models.Room, e *models.CourseEnrollment) []string {
	var ids []string
	for _, room := range rooms {
		if !room.IsActive {
			continue
		}
		if e.RequiredRoomType != nil && *e.RequiredRoomType != "" && room.RoomType != *e.RequiredRoomType {
			continue
		}
		if e.ClassGroupSize > 0 && room.Capacity < e.ClassGroupSize {
			continue
		}
		if room.DepartmentID != nil && e.DepartmentID != nil && *room.DepartmentID != *e.DepartmentID {
			continue
		}
		ids = append(ids, room.ID)
	}
	return ids
}

// mergeAvailability groups windows per trainer and day and unions overlaps.
func mergeAvailability(windows []models.TrainerAvailability) map[string]map[models.DayOfWeek][]models.TimeWindow {
	grouped := make(map[string]map[models.DayOfWeek][]models.TimeWindow)
	for _, w := range windows {
		if !w.DayOfWeek.Valid() {
			continue
		}
		days, ok := grouped[w.TrainerID]
		if !ok {
			days = make(map[models.DayOfWeek][]models.TimeWindow)
			grouped[w.TrainerID] = days
		}
		days[w.DayOfWeek] = append(days[w.DayOfWeek], models.TimeWindow{Start: w.StartTime, End: w.EndTime})
	}
	for trainer, days := range grouped {
		for day, list := range days {
			merged := models.MergeWindows(list)
			if len(merged) == 0 {
				delete(days, day)
				continue
			}
			days[day] = merged
		}
		if len(days) == 0 {
			delete(grouped, trainer)
		}
	}
	return grouped
}

func withinAny(windows []models.TimeWindow, start, end models.ClockTime) bool {
	for _, w := range windows {
		if w.Contains(start, end) {
			return true
		}
	}
	return false
}

func overlapsAny(windows []models.TimeWindow, start, end models.ClockTime) bool {
	for _, w := range windows {
		if models.Overlaps(w.Start, w.End, start, end) {
			return true
		}
	}
	return false
}
