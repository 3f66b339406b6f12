package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wanderplan/trip-engine/internal/apperrors"
	"github.com/wanderplan/trip-engine/internal/model"
)

func newTestTripService(trips *mockTripRepo, participants *mockParticipantRepo, scheduled *mockScheduledRepo) *TripService {
	return &TripService{
		tripRepo:           trips,
		participantRepo:    participants,
		scheduledRepo:      scheduled,
		defaultTimezone:    "Europe/Amsterdam",
		defaultCountryCode: "31",
	}
}

func TestCreateTrip_MintsShareToken(t *testing.T) {
	trips := new(mockTripRepo)

	var created model.CreateTripParams
	trips.On("Create", mock.Anything, mock.AnythingOfType("model.CreateTripParams")).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(model.CreateTripParams)
		}).
		Return(&model.Trip{ID: "trip-1", TenantID: "tenant-1", Name: "Lisbon"}, nil)

	svc := newTestTripService(trips, new(mockParticipantRepo), new(mockScheduledRepo))
	trip, err := svc.CreateTrip(context.Background(), CreateTripParams{
		TenantID: "tenant-1",
		Name:     "Lisbon",
	})

	require.NoError(t, err)
	assert.Equal(t, "trip-1", trip.ID)
	assert.Len(t, created.ShareToken, 64)
	assert.Equal(t, "Europe/Amsterdam", created.DefaultTimezone)
}

func TestCreateTrip_RejectsUnknownTimezone(t *testing.T) {
	svc := newTestTripService(new(mockTripRepo), new(mockParticipantRepo), new(mockScheduledRepo))

	_, err := svc.CreateTrip(context.Background(), CreateTripParams{
		TenantID:        "tenant-1",
		Name:            "Lisbon",
		DefaultTimezone: "Not/AZone",
	})

	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
}

func TestAddParticipant_NormalizesPhone(t *testing.T) {
	trips := new(mockTripRepo)
	participants := new(mockParticipantRepo)

	trips.On("FindByID", mock.Anything, "trip-1").
		Return(&model.Trip{ID: "trip-1", Name: "Lisbon"}, nil)

	var created model.CreateParticipantParams
	participants.On("Create", mock.Anything, mock.AnythingOfType("model.CreateParticipantParams")).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(model.CreateParticipantParams)
		}).
		Return(&model.Participant{ID: "p1"}, nil)

	svc := newTestTripService(trips, participants, new(mockScheduledRepo))
	_, err := svc.AddParticipant(context.Background(), "trip-1", "Anna", "06 12 34 56 78", true)

	require.NoError(t, err)
	assert.Equal(t, "+31612345678", created.Phone)
}

func TestScheduleMessage_ValidatesSchedule(t *testing.T) {
	trips := new(mockTripRepo)
	trips.On("FindByID", mock.Anything, "trip-1").
		Return(&model.Trip{ID: "trip-1", DefaultTimezone: "Europe/Amsterdam"}, nil)

	svc := newTestTripService(trips, new(mockParticipantRepo), new(mockScheduledRepo))

	_, err := svc.ScheduleMessage(context.Background(), ScheduleMessageParams{
		TripID:         "trip-1",
		RecipientPhone: "0612345678",
		Body:           "Pack sunscreen",
		SendDate:       "tomorrow",
		SendTime:       "morning",
	})

	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
}

func TestScheduleMessage_DefaultsToTripTimezone(t *testing.T) {
	trips := new(mockTripRepo)
	scheduled := new(mockScheduledRepo)

	trips.On("FindByID", mock.Anything, "trip-1").
		Return(&model.Trip{ID: "trip-1", DefaultTimezone: "Asia/Tokyo"}, nil)

	var created model.CreateScheduledMessageParams
	scheduled.On("Create", mock.Anything, mock.AnythingOfType("model.CreateScheduledMessageParams")).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(model.CreateScheduledMessageParams)
		}).
		Return(&model.ScheduledMessage{ID: "job-1"}, nil)

	svc := newTestTripService(trips, new(mockParticipantRepo), scheduled)
	_, err := svc.ScheduleMessage(context.Background(), ScheduleMessageParams{
		TripID:         "trip-1",
		RecipientPhone: "0612345678",
		Body:           "Pack sunscreen",
		SendDate:       "2026-06-01",
		SendTime:       "09:00",
	})

	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", created.Timezone)
	assert.Equal(t, "+31612345678", created.RecipientPhone)
	assert.Equal(t, model.MessageTypeAdHoc, created.MessageType)
}

func TestDeleteScheduledMessage_NotFound(t *testing.T) {
	scheduled := new(mockScheduledRepo)
	scheduled.On("FindByID", mock.Anything, "missing").Return(nil, nil)

	svc := newTestTripService(new(mockTripRepo), new(mockParticipantRepo), scheduled)
	err := svc.DeleteScheduledMessage(context.Background(), "missing")

	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	scheduled.AssertNotCalled(t, "Delete")
}
