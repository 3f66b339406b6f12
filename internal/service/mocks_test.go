package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"

	"github.com/wanderplan/trip-engine/internal/database"
	"github.com/wanderplan/trip-engine/internal/model"
	"github.com/wanderplan/trip-engine/internal/repository"
)

func jsonRaw(s string) json.RawMessage {
	return json.RawMessage(s)
}

// passthroughTxRunner runs the function directly, without a real transaction.
// The repo mocks ignore the *sqlx.Tx handed to WithTx.
type passthroughTxRunner struct{}

func (passthroughTxRunner) WithTx(ctx context.Context, fn database.TxFunc) error {
	return fn(nil)
}

type mockSessionRepo struct {
	mock.Mock
}

func (m *mockSessionRepo) FindByToken(ctx context.Context, token string) (*model.Session, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) FindByTripAndAddress(ctx context.Context, tripID, address string) (*model.Session, error) {
	args := m.Called(ctx, tripID, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) FindLatestByAddress(ctx context.Context, address string) (*model.Session, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) Upsert(ctx context.Context, params model.UpsertSessionParams) (*model.Session, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) Touch(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *mockSessionRepo) ListByTrip(ctx context.Context, tripID string) ([]model.Session, error) {
	args := m.Called(ctx, tripID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Session), args.Error(1)
}

func (m *mockSessionRepo) WithTx(tx *sqlx.Tx) repository.SessionRepository {
	return m
}

type mockIntakeRepo struct {
	mock.Mock
}

func (m *mockIntakeRepo) FindBySessionToken(ctx context.Context, token string) (*model.Intake, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Intake), args.Error(1)
}

func (m *mockIntakeRepo) CreateIfMissing(ctx context.Context, sessionToken string) error {
	args := m.Called(ctx, sessionToken)
	return args.Error(0)
}

func (m *mockIntakeRepo) Complete(ctx context.Context, sessionToken string, travelerCount int, profile json.RawMessage) (bool, error) {
	args := m.Called(ctx, sessionToken, travelerCount, profile)
	return args.Bool(0), args.Error(1)
}

func (m *mockIntakeRepo) WithTx(tx *sqlx.Tx) repository.IntakeRepository {
	return m
}

type mockMessageRepo struct {
	mock.Mock
}

func (m *mockMessageRepo) Append(ctx context.Context, params model.AppendMessageParams) (*model.ConversationMessage, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ConversationMessage), args.Error(1)
}

func (m *mockMessageRepo) AppendIfEmpty(ctx context.Context, params model.AppendMessageParams) (bool, error) {
	args := m.Called(ctx, params)
	return args.Bool(0), args.Error(1)
}

func (m *mockMessageRepo) ListBySessionToken(ctx context.Context, token string) ([]model.ConversationMessage, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ConversationMessage), args.Error(1)
}

func (m *mockMessageRepo) CountBySessionToken(ctx context.Context, token string) (int, error) {
	args := m.Called(ctx, token)
	return args.Int(0), args.Error(1)
}

type mockTripRepo struct {
	mock.Mock
}

func (m *mockTripRepo) FindByID(ctx context.Context, id string) (*model.Trip, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Trip), args.Error(1)
}

func (m *mockTripRepo) FindByShareToken(ctx context.Context, shareToken string) (*model.Trip, error) {
	args := m.Called(ctx, shareToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Trip), args.Error(1)
}

func (m *mockTripRepo) Create(ctx context.Context, params model.CreateTripParams) (*model.Trip, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Trip), args.Error(1)
}

func (m *mockTripRepo) Update(ctx context.Context, id string, params model.UpdateTripParams) (*model.Trip, error) {
	args := m.Called(ctx, id, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Trip), args.Error(1)
}

func (m *mockTripRepo) ListByTenant(ctx context.Context, tenantID string) ([]model.Trip, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Trip), args.Error(1)
}

type mockParticipantRepo struct {
	mock.Mock
}

func (m *mockParticipantRepo) FindByID(ctx context.Context, id string) (*model.Participant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Participant), args.Error(1)
}

func (m *mockParticipantRepo) ListByTrip(ctx context.Context, tripID string) ([]model.Participant, error) {
	args := m.Called(ctx, tripID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Participant), args.Error(1)
}

func (m *mockParticipantRepo) Create(ctx context.Context, params model.CreateParticipantParams) (*model.Participant, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Participant), args.Error(1)
}

func (m *mockParticipantRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockScheduledRepo struct {
	mock.Mock
}

func (m *mockScheduledRepo) FindByID(ctx context.Context, id string) (*model.ScheduledMessage, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ScheduledMessage), args.Error(1)
}

func (m *mockScheduledRepo) Create(ctx context.Context, params model.CreateScheduledMessageParams) (*model.ScheduledMessage, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ScheduledMessage), args.Error(1)
}

func (m *mockScheduledRepo) ExistsByTripPhoneType(ctx context.Context, tripID, phone string, msgType model.MessageType) (bool, error) {
	args := m.Called(ctx, tripID, phone, msgType)
	return args.Bool(0), args.Error(1)
}

func (m *mockScheduledRepo) FindPending(ctx context.Context, claimLease time.Duration, limit int) ([]model.ScheduledMessage, error) {
	args := m.Called(ctx, claimLease, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ScheduledMessage), args.Error(1)
}

func (m *mockScheduledRepo) Claim(ctx context.Context, id string, claimLease time.Duration) (bool, error) {
	args := m.Called(ctx, id, claimLease)
	return args.Bool(0), args.Error(1)
}

func (m *mockScheduledRepo) MarkSent(ctx context.Context, id, deliveryID string) (bool, error) {
	args := m.Called(ctx, id, deliveryID)
	return args.Bool(0), args.Error(1)
}

func (m *mockScheduledRepo) ReleaseFailed(ctx context.Context, id, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *mockScheduledRepo) MarkAlerted(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockScheduledRepo) ListByTrip(ctx context.Context, tripID string) ([]model.ScheduledMessage, error) {
	args := m.Called(ctx, tripID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ScheduledMessage), args.Error(1)
}

func (m *mockScheduledRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, transcript []model.ConversationMessage, behaviorInstructions, travelerText string) (string, error) {
	args := m.Called(ctx, transcript, behaviorInstructions, travelerText)
	return args.String(0), args.Error(1)
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, recipientPhone, body string) (string, error) {
	args := m.Called(ctx, recipientPhone, body)
	return args.String(0), args.Error(1)
}
