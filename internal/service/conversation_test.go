package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wanderplan/trip-engine/internal/apperrors"
	"github.com/wanderplan/trip-engine/internal/model"
)

func activeConversationFixtures(t *testing.T) (*mockSessionRepo, *mockIntakeRepo, *mockTripRepo) {
	t.Helper()

	sessions := new(mockSessionRepo)
	intakes := new(mockIntakeRepo)
	trips := new(mockTripRepo)

	completedAt := time.Now()
	sessions.On("FindByToken", mock.Anything, "tok").
		Return(&model.Session{Token: "tok", TripID: "trip-1"}, nil)
	sessions.On("Touch", mock.Anything, "tok").Return(nil)
	intakes.On("FindBySessionToken", mock.Anything, "tok").
		Return(&model.Intake{SessionToken: "tok", CompletedAt: &completedAt}, nil)
	trips.On("FindByID", mock.Anything, "trip-1").
		Return(&model.Trip{ID: "trip-1", Name: "Lisbon"}, nil)

	return sessions, intakes, trips
}

func newTestConversation(sessions *mockSessionRepo, intakes *mockIntakeRepo, messages *mockMessageRepo, trips *mockTripRepo, gen *mockGenerator) *ConversationService {
	return &ConversationService{
		sessionRepo:       sessions,
		intakeRepo:        intakes,
		messageRepo:       messages,
		tripRepo:          trips,
		generator:         gen,
		generationTimeout: time.Second,
	}
}

func TestRespond_AppendsTravelerAndAssistantEntries(t *testing.T) {
	sessions, intakes, trips := activeConversationFixtures(t)
	messages := new(mockMessageRepo)
	gen := new(mockGenerator)

	messages.On("AppendIfEmpty", mock.Anything, mock.AnythingOfType("model.AppendMessageParams")).
		Return(false, nil)
	messages.On("ListBySessionToken", mock.Anything, "tok").
		Return([]model.ConversationMessage{{Role: model.RoleAssistant, Body: "Welcome!"}}, nil)
	messages.On("Append", mock.Anything, mock.MatchedBy(func(p model.AppendMessageParams) bool {
		return p.Role == model.RoleTraveler && p.Body == "What's the weather?"
	})).Return(&model.ConversationMessage{}, nil)
	messages.On("Append", mock.Anything, mock.MatchedBy(func(p model.AppendMessageParams) bool {
		return p.Role == model.RoleAssistant && p.Body == "Sunny, 24 degrees."
	})).Return(&model.ConversationMessage{}, nil)

	gen.On("Generate", mock.Anything, mock.Anything, "", "What's the weather?").
		Return("Sunny, 24 degrees.", nil)

	svc := newTestConversation(sessions, intakes, messages, trips, gen)
	reply, err := svc.Respond(context.Background(), "tok", "What's the weather?")

	require.NoError(t, err)
	assert.Equal(t, "Sunny, 24 degrees.", reply)
	messages.AssertNumberOfCalls(t, "Append", 2)
}

func TestRespond_SynthesizesWelcomeOnFirstAccess(t *testing.T) {
	sessions, intakes, trips := activeConversationFixtures(t)
	messages := new(mockMessageRepo)
	gen := new(mockGenerator)

	messages.On("AppendIfEmpty", mock.Anything, mock.MatchedBy(func(p model.AppendMessageParams) bool {
		return p.Role == model.RoleAssistant && p.Body == welcomeText("Lisbon")
	})).Return(true, nil)
	messages.On("ListBySessionToken", mock.Anything, "tok").
		Return([]model.ConversationMessage{{Role: model.RoleAssistant, Body: welcomeText("Lisbon")}}, nil)
	messages.On("Append", mock.Anything, mock.Anything).Return(&model.ConversationMessage{}, nil)
	gen.On("Generate", mock.Anything, mock.Anything, "", "hi").Return("Hello!", nil)

	svc := newTestConversation(sessions, intakes, messages, trips, gen)
	_, err := svc.Respond(context.Background(), "tok", "hi")

	require.NoError(t, err)
	messages.AssertNumberOfCalls(t, "AppendIfEmpty", 1)
}

func TestRespond_GenerationFailureYieldsApology(t *testing.T) {
	sessions, intakes, trips := activeConversationFixtures(t)
	messages := new(mockMessageRepo)
	gen := new(mockGenerator)

	messages.On("AppendIfEmpty", mock.Anything, mock.Anything).Return(false, nil)
	messages.On("ListBySessionToken", mock.Anything, "tok").
		Return([]model.ConversationMessage{}, nil)

	travelerAppended := false
	messages.On("Append", mock.Anything, mock.MatchedBy(func(p model.AppendMessageParams) bool {
		return p.Role == model.RoleTraveler
	})).Run(func(mock.Arguments) { travelerAppended = true }).
		Return(&model.ConversationMessage{}, nil)
	messages.On("Append", mock.Anything, mock.MatchedBy(func(p model.AppendMessageParams) bool {
		return p.Role == model.RoleAssistant && p.Body == apologyText
	})).Return(&model.ConversationMessage{}, nil)

	gen.On("Generate", mock.Anything, mock.Anything, "", "hello").
		Return("", errors.New("upstream timeout"))

	svc := newTestConversation(sessions, intakes, messages, trips, gen)
	reply, err := svc.Respond(context.Background(), "tok", "hello")

	// The channel user never sees the generation error.
	require.NoError(t, err)
	assert.Equal(t, apologyText, reply)
	assert.True(t, travelerAppended, "traveler entry must survive a generation failure")
}

func TestRespond_RefusedWhileAwaitingIntake(t *testing.T) {
	sessions := new(mockSessionRepo)
	intakes := new(mockIntakeRepo)

	sessions.On("FindByToken", mock.Anything, "tok").
		Return(&model.Session{Token: "tok", TripID: "trip-1"}, nil)
	intakes.On("FindBySessionToken", mock.Anything, "tok").
		Return(&model.Intake{SessionToken: "tok"}, nil)

	messages := new(mockMessageRepo)
	svc := newTestConversation(sessions, intakes, messages, new(mockTripRepo), new(mockGenerator))

	_, err := svc.Respond(context.Background(), "tok", "let me in")

	assert.Equal(t, apperrors.ErrCodeIntakeRequired, apperrors.GetCode(err))
	messages.AssertNotCalled(t, "Append")
}

func TestRespond_RejectsEmptyText(t *testing.T) {
	svc := &ConversationService{}

	_, err := svc.Respond(context.Background(), "tok", "")

	assert.Equal(t, apperrors.ErrCodeMissingRequired, apperrors.GetCode(err))
}

func TestTranscript_UnknownSession(t *testing.T) {
	sessions := new(mockSessionRepo)
	sessions.On("FindByToken", mock.Anything, "missing").Return(nil, nil)

	svc := &ConversationService{sessionRepo: sessions}

	_, err := svc.Transcript(context.Background(), "missing")

	assert.Equal(t, apperrors.ErrCodeSessionNotFound, apperrors.GetCode(err))
}
