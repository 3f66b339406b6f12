package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wanderplan/trip-engine/internal/apperrors"
	"github.com/wanderplan/trip-engine/internal/model"
)

func newTestFanOut(trips *mockTripRepo, participants *mockParticipantRepo, sessions *mockSessionRepo, intakes *mockIntakeRepo, scheduled *mockScheduledRepo) *FanOutService {
	return &FanOutService{
		tripRepo:           trips,
		participantRepo:    participants,
		sessionRepo:        sessions,
		intakeRepo:         intakes,
		scheduledRepo:      scheduled,
		defaultCountryCode: "31",
		shareLink:          func(token string) string { return "https://example.test/t/" + token },
		now:                time.Now,
	}
}

func TestSubmit_TransitionTriggersFanOut(t *testing.T) {
	sessions := new(mockSessionRepo)
	intakes := new(mockIntakeRepo)
	trips := new(mockTripRepo)
	participants := new(mockParticipantRepo)
	scheduled := new(mockScheduledRepo)

	session := &model.Session{Token: "tok", TripID: "trip-1", ChannelAddress: "web:abc"}
	sessions.On("FindByToken", mock.Anything, "tok").Return(session, nil)
	intakes.On("Complete", mock.Anything, "tok", 3, mock.Anything).Return(true, nil)

	trips.On("FindByID", mock.Anything, "trip-1").
		Return(&model.Trip{ID: "trip-1", Name: "Lisbon", ShareToken: "st", DefaultTimezone: "Europe/Amsterdam"}, nil)
	participants.On("ListByTrip", mock.Anything, "trip-1").Return([]model.Participant{}, nil)

	svc := &IntakeService{
		intakeRepo:  intakes,
		sessionRepo: sessions,
		fanOut:      newTestFanOut(trips, participants, sessions, intakes, scheduled),
	}

	err := svc.Submit(context.Background(), "tok", 3, json.RawMessage(`{"diet":"vegetarian"}`))

	require.NoError(t, err)
	participants.AssertCalled(t, "ListByTrip", mock.Anything, "trip-1")
}

func TestSubmit_DuplicateReturnsAlreadyCompleted(t *testing.T) {
	sessions := new(mockSessionRepo)
	intakes := new(mockIntakeRepo)
	trips := new(mockTripRepo)
	participants := new(mockParticipantRepo)
	scheduled := new(mockScheduledRepo)

	session := &model.Session{Token: "tok", TripID: "trip-1"}
	sessions.On("FindByToken", mock.Anything, "tok").Return(session, nil)
	intakes.On("Complete", mock.Anything, "tok", 2, mock.Anything).Return(false, nil)
	trips.On("FindByID", mock.Anything, "trip-1").
		Return(&model.Trip{ID: "trip-1", Name: "Lisbon", ShareToken: "st", DefaultTimezone: "Europe/Amsterdam"}, nil)
	participants.On("ListByTrip", mock.Anything, "trip-1").Return([]model.Participant{}, nil)

	svc := &IntakeService{
		intakeRepo:  intakes,
		sessionRepo: sessions,
		fanOut:      newTestFanOut(trips, participants, sessions, intakes, scheduled),
	}

	err := svc.Submit(context.Background(), "tok", 2, nil)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeIntakeCompleted, appErr.Code)

	// The duplicate still walks fan-out so a retry can fill in missing jobs,
	// but with nothing missing it enqueues nothing.
	participants.AssertCalled(t, "ListByTrip", mock.Anything, "trip-1")
	scheduled.AssertNotCalled(t, "Create")
}

func TestSubmit_RetryFinishesInterruptedFanOut(t *testing.T) {
	sessions := new(mockSessionRepo)
	intakes := new(mockIntakeRepo)
	trips := new(mockTripRepo)
	participants := new(mockParticipantRepo)
	scheduled := new(mockScheduledRepo)

	session := &model.Session{Token: "tok", TripID: "trip-1", ChannelAddress: "web:abc"}
	sessions.On("FindByToken", mock.Anything, "tok").Return(session, nil)
	intakes.On("Complete", mock.Anything, "tok", 2, mock.Anything).Return(true, nil).Once()
	intakes.On("Complete", mock.Anything, "tok", 2, mock.Anything).Return(false, nil)

	trips.On("FindByID", mock.Anything, "trip-1").
		Return(&model.Trip{ID: "trip-1", Name: "Lisbon", ShareToken: "st", DefaultTimezone: "Europe/Amsterdam"}, nil)

	// First fan-out dies before any job is enqueued; the retry sees the
	// participant list.
	participants.On("ListByTrip", mock.Anything, "trip-1").
		Return(nil, errors.New("connection reset")).Once()
	participants.On("ListByTrip", mock.Anything, "trip-1").
		Return([]model.Participant{{ID: "p1", TripID: "trip-1", Name: "Anna", Phone: "+31612345678"}}, nil)

	sessions.On("Upsert", mock.Anything, mock.AnythingOfType("model.UpsertSessionParams")).
		Return(&model.Session{Token: "ptok", TripID: "trip-1", ChannelAddress: "+31612345678"}, nil)
	intakes.On("CreateIfMissing", mock.Anything, "ptok").Return(nil)
	scheduled.On("ExistsByTripPhoneType", mock.Anything, "trip-1", "+31612345678", model.MessageTypeIntakeCompleted).
		Return(false, nil)
	scheduled.On("Create", mock.Anything, mock.AnythingOfType("model.CreateScheduledMessageParams")).
		Return(&model.ScheduledMessage{ID: "job-1"}, nil)

	svc := &IntakeService{
		intakeRepo:  intakes,
		sessionRepo: sessions,
		fanOut:      newTestFanOut(trips, participants, sessions, intakes, scheduled),
	}

	err := svc.Submit(context.Background(), "tok", 2, json.RawMessage(`{}`))
	require.Error(t, err)
	scheduled.AssertNotCalled(t, "Create")

	// The gate is already ACTIVE, so the retry reports the benign duplicate,
	// yet the job the first call never enqueued now exists.
	err = svc.Submit(context.Background(), "tok", 2, json.RawMessage(`{}`))
	assert.Equal(t, apperrors.ErrCodeIntakeCompleted, apperrors.GetCode(err))
	scheduled.AssertCalled(t, "Create", mock.Anything, mock.AnythingOfType("model.CreateScheduledMessageParams"))
}

func TestSubmit_RejectsInvalidTravelerCount(t *testing.T) {
	svc := &IntakeService{}

	err := svc.Submit(context.Background(), "tok", 0, nil)

	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
}

func TestSubmit_UnknownSession(t *testing.T) {
	sessions := new(mockSessionRepo)
	sessions.On("FindByToken", mock.Anything, "missing").Return(nil, nil)

	svc := &IntakeService{intakeRepo: new(mockIntakeRepo), sessionRepo: sessions}

	err := svc.Submit(context.Background(), "missing", 1, nil)

	assert.Equal(t, apperrors.ErrCodeSessionNotFound, apperrors.GetCode(err))
}

func TestState_RepairsMissingIntake(t *testing.T) {
	sessions := new(mockSessionRepo)
	intakes := new(mockIntakeRepo)

	sessions.On("FindByToken", mock.Anything, "tok").
		Return(&model.Session{Token: "tok", TripID: "trip-1"}, nil)
	intakes.On("FindBySessionToken", mock.Anything, "tok").Return(nil, nil)
	intakes.On("CreateIfMissing", mock.Anything, "tok").Return(nil)

	svc := &IntakeService{intakeRepo: intakes, sessionRepo: sessions}

	state, err := svc.State(context.Background(), "tok")

	require.NoError(t, err)
	assert.False(t, state.Completed)
	intakes.AssertCalled(t, "CreateIfMissing", mock.Anything, "tok")
}

func TestState_Completed(t *testing.T) {
	sessions := new(mockSessionRepo)
	intakes := new(mockIntakeRepo)

	completedAt := time.Now()
	sessions.On("FindByToken", mock.Anything, "tok").
		Return(&model.Session{Token: "tok", TripID: "trip-1"}, nil)
	intakes.On("FindBySessionToken", mock.Anything, "tok").
		Return(&model.Intake{SessionToken: "tok", TravelerCount: 4, CompletedAt: &completedAt}, nil)

	svc := &IntakeService{intakeRepo: intakes, sessionRepo: sessions}

	state, err := svc.State(context.Background(), "tok")

	require.NoError(t, err)
	assert.True(t, state.Completed)
	assert.Equal(t, 4, state.TravelerCount)
}
