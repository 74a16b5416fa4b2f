package job

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"meridian/internal/domain"
	"meridian/internal/domain/models"
	contentdomain "meridian/internal/domain/services/content"
)

// fakeUnits is an in-memory repositories.UnitRepository.
type fakeUnits struct {
	byID  map[string]*models.Unit
	nextN int
}

func newFakeUnits() *fakeUnits { return &fakeUnits{byID: map[string]*models.Unit{}} }

func (f *fakeUnits) Create(ctx context.Context, unit *models.Unit) error {
	f.nextN++
	unit.ID = "unit-" + strconv.Itoa(f.nextN)
	f.byID[unit.ID] = unit
	return nil
}
func (f *fakeUnits) GetByID(ctx context.Context, id string) (*models.Unit, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u, nil
}
func (f *fakeUnits) GetByFlowRunID(ctx context.Context, flowRunID string) (*models.Unit, error) {
	for _, u := range f.byID {
		if u.FlowRunID != nil && *u.FlowRunID == flowRunID {
			return u, nil
		}
	}
	return nil, domain.ErrNotFound
}
func (f *fakeUnits) Update(ctx context.Context, unit *models.Unit) error {
	f.byID[unit.ID] = unit
	return nil
}
func (f *fakeUnits) Delete(ctx context.Context, id string) error {
	delete(f.byID, id)
	return nil
}

// fakeLessons is a no-op repositories.LessonRepository; Get is the only path
// exercised from this package's tests.
type fakeLessons struct {
	byID map[string]*models.Lesson
}

func (f *fakeLessons) Create(ctx context.Context, lesson *models.Lesson) error { return nil }
func (f *fakeLessons) GetByID(ctx context.Context, id, unitID string) (*models.Lesson, error) {
	l, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return l, nil
}
func (f *fakeLessons) Get(ctx context.Context, id string) (*models.Lesson, error) {
	return f.GetByID(ctx, id, "")
}
func (f *fakeLessons) Update(ctx context.Context, lesson *models.Lesson) error { return nil }
func (f *fakeLessons) DeleteByUnit(ctx context.Context, unitID string) error   { return nil }

// fakeOrchestrator lets tests control whether CreateUnit succeeds.
type fakeOrchestrator struct {
	createUnitErr error
	called        bool
	onCreateUnit  func(unitID string)
}

func (o *fakeOrchestrator) CreateUnit(ctx context.Context, unitID string, req contentdomain.UnitRequest) error {
	o.called = true
	if o.onCreateUnit != nil {
		o.onCreateUnit(unitID)
	}
	return o.createUnitErr
}
func (o *fakeOrchestrator) CreateUnitArt(ctx context.Context, unitID string) error       { return nil }
func (o *fakeOrchestrator) CreateUnitPodcast(ctx context.Context, unitID string) error   { return nil }
func (o *fakeOrchestrator) CreateLessonPodcast(ctx context.Context, lessonID string) error {
	return nil
}

func validUnitRequest() contentdomain.UnitRequest {
	topic := "photosynthesis"
	return contentdomain.UnitRequest{
		Topic:             &topic,
		TargetLessonCount: 3,
		LearnerLevel:      models.LearnerBeginner,
		FlowType:          models.FlowTypeStandard,
	}
}

func TestValidateUnitRequest_RequiresTopicOrSourceMaterial(t *testing.T) {
	req := contentdomain.UnitRequest{TargetLessonCount: 3}
	if err := validateUnitRequest(req); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestValidateUnitRequest_RejectsOverlongTopic(t *testing.T) {
	topic := make([]byte, 600)
	for i := range topic {
		topic[i] = 'a'
	}
	topicStr := string(topic)
	req := contentdomain.UnitRequest{Topic: &topicStr, TargetLessonCount: 3}
	if err := validateUnitRequest(req); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for overlong topic, got %v", err)
	}
}

func TestValidateUnitRequest_RejectsOutOfRangeLessonCount(t *testing.T) {
	req := validUnitRequest()
	req.TargetLessonCount = 0
	if err := validateUnitRequest(req); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for TargetLessonCount=0, got %v", err)
	}

	req2 := validUnitRequest()
	req2.TargetLessonCount = 999
	if err := validateUnitRequest(req2); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for TargetLessonCount=999, got %v", err)
	}
}

func TestValidateUnitRequest_AcceptsWellFormedRequest(t *testing.T) {
	if err := validateUnitRequest(validUnitRequest()); err != nil {
		t.Fatalf("expected well-formed request to validate, got %v", err)
	}
}

func TestSubmit_InvalidRequestPersistsFailedUnitAndReturnsError(t *testing.T) {
	units := newFakeUnits()
	orch := &fakeOrchestrator{}
	svc := &Service{Orchestrator: orch, Units: units}

	req := contentdomain.UnitRequest{TargetLessonCount: 3} // no topic/source_material
	result, err := svc.Submit(context.Background(), req, false)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if result.Status != models.UnitFailed {
		t.Errorf("result.Status = %v, want %v", result.Status, models.UnitFailed)
	}
	stored, ok := units.byID[result.UnitID]
	if !ok {
		t.Fatal("expected the failed unit to be persisted")
	}
	if stored.Status != models.UnitFailed {
		t.Errorf("persisted unit Status = %v, want %v", stored.Status, models.UnitFailed)
	}
	if orch.called {
		t.Error("expected Orchestrator.CreateUnit to never be called for an invalid request")
	}
}

func TestSubmit_Synchronous_ReturnsFinalUnitState(t *testing.T) {
	units := newFakeUnits()
	orch := &fakeOrchestrator{
		onCreateUnit: func(unitID string) {
			u := units.byID[unitID]
			u.Status = models.UnitCompleted
		},
	}
	svc := &Service{Orchestrator: orch, Units: units}

	result, err := svc.Submit(context.Background(), validUnitRequest(), false)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if !orch.called {
		t.Fatal("expected Orchestrator.CreateUnit to be called")
	}
	if result.Status != models.UnitCompleted {
		t.Errorf("result.Status = %v, want %v", result.Status, models.UnitCompleted)
	}
}

func TestSubmit_Background_ReturnsPendingImmediately(t *testing.T) {
	units := newFakeUnits()
	done := make(chan struct{})
	orch := &fakeOrchestrator{
		onCreateUnit: func(unitID string) { close(done) },
	}
	svc := &Service{Orchestrator: orch, Units: units}

	result, err := svc.Submit(context.Background(), validUnitRequest(), true)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if result.Status != models.UnitPending {
		t.Errorf("result.Status = %v, want %v (background submission returns immediately)", result.Status, models.UnitPending)
	}
	<-done // wait for the background goroutine so the test doesn't race on t.Fatal above
}

func TestCancel_RejectsAlreadyTerminalUnit(t *testing.T) {
	units := newFakeUnits()
	u := &models.Unit{ID: "unit-1", Status: models.UnitCompleted}
	units.byID[u.ID] = u
	svc := &Service{Units: units}

	err := svc.Cancel(context.Background(), "unit-1")
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict for an already-terminal unit, got %v", err)
	}
}

func TestCancel_RejectsUnitWithoutAStartedFlow(t *testing.T) {
	units := newFakeUnits()
	u := &models.Unit{ID: "unit-1", Status: models.UnitInProgress}
	units.byID[u.ID] = u
	svc := &Service{Units: units}

	err := svc.Cancel(context.Background(), "unit-1")
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict for a unit with no flow_run_id, got %v", err)
	}
}
