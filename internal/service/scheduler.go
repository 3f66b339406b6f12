package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wanderplan/trip-engine/internal/audit"
	"github.com/wanderplan/trip-engine/internal/config"
	"github.com/wanderplan/trip-engine/internal/gateway"
	"github.com/wanderplan/trip-engine/internal/model"
	"github.com/wanderplan/trip-engine/internal/repository"
)

// SchedulerService runs delivery passes over pending scheduled messages.
// Every job is claimed with a conditional update before the gateway call and
// marked sent with a second conditional update after it, so overlapping
// passes (independent worker instances included) never double-send.
type SchedulerService struct {
	scheduledRepo repository.ScheduledMessageRepository
	sender        gateway.Sender
	maxAttempts   int
	claimLease    time.Duration
	batchSize     int
	now           func() time.Time
}

func NewSchedulerService(
	scheduledRepo repository.ScheduledMessageRepository,
	sender gateway.Sender,
	maxAttempts int,
) *SchedulerService {
	return &SchedulerService{
		scheduledRepo: scheduledRepo,
		sender:        sender,
		maxAttempts:   maxAttempts,
		claimLease:    config.SchedulerClaimLease,
		batchSize:     config.SchedulerBatchSize,
		now:           time.Now,
	}
}

// PassStats summarizes one scheduler pass.
type PassStats struct {
	Scanned   int `json:"scanned"`
	Due       int `json:"due"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
	Exhausted int `json:"exhausted"`
}

// RunPass scans pending jobs and attempts delivery for each one that is due
// in its own timezone. Jobs are independent; one failure does not stop the
// pass.
func (s *SchedulerService) RunPass(ctx context.Context) (PassStats, error) {
	var stats PassStats

	jobs, err := s.scheduledRepo.FindPending(ctx, s.claimLease, s.batchSize)
	if err != nil {
		return stats, fmt.Errorf("find pending jobs: %w", err)
	}
	stats.Scanned = len(jobs)

	now := s.now()
	for i := range jobs {
		job := &jobs[i]

		due, err := job.DueAt()
		if err != nil {
			// A malformed schedule can never become due; park it for the
			// operator instead of rescanning it forever.
			log.Error().Err(err).Str("jobId", job.ID).Msg("unschedulable job")
			if markErr := s.scheduledRepo.MarkAlerted(ctx, job.ID); markErr != nil {
				log.Error().Err(markErr).Str("jobId", job.ID).Msg("mark alerted failed")
			}
			continue
		}
		if due.After(now) {
			continue
		}
		stats.Due++

		s.deliver(ctx, job, &stats)
	}

	log.Info().
		Int("scanned", stats.Scanned).
		Int("due", stats.Due).
		Int("delivered", stats.Delivered).
		Int("failed", stats.Failed).
		Msg("scheduler pass finished")
	return stats, nil
}

func (s *SchedulerService) deliver(ctx context.Context, job *model.ScheduledMessage, stats *PassStats) {
	claimed, err := s.scheduledRepo.Claim(ctx, job.ID, s.claimLease)
	if err != nil {
		log.Error().Err(err).Str("jobId", job.ID).Msg("claim failed")
		stats.Failed++
		return
	}
	if !claimed {
		// Another pass holds this job; it is not ours to deliver.
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, config.GatewaySendTimeout)
	deliveryID, sendErr := s.sender.Send(sendCtx, job.RecipientPhone, renderBody(job))
	cancel()

	if sendErr != nil {
		stats.Failed++
		reason := sendErr.Error()
		log.Error().Err(sendErr).
			Str("jobId", job.ID).
			Str("tripId", job.TripID).
			Int("attempt", job.AttemptCount+1).
			Msg("delivery failed")
		audit.Log(audit.Event{
			Type:    audit.EventDeliveryFailed,
			TripID:  job.TripID,
			JobID:   job.ID,
			Details: map[string]interface{}{"attempt": job.AttemptCount + 1, "error": reason},
		})

		// The claim bumped attempt_count; job.AttemptCount still holds the
		// pre-claim value.
		if job.AttemptCount+1 >= s.maxAttempts {
			stats.Exhausted++
			if err := s.scheduledRepo.MarkAlerted(ctx, job.ID); err != nil {
				log.Error().Err(err).Str("jobId", job.ID).Msg("mark alerted failed")
				return
			}
			audit.Log(audit.Event{
				Type:    audit.EventRetriesExhausted,
				TripID:  job.TripID,
				JobID:   job.ID,
				Details: map[string]interface{}{"attempts": job.AttemptCount + 1},
			})
			return
		}

		if err := s.scheduledRepo.ReleaseFailed(ctx, job.ID, reason); err != nil {
			log.Error().Err(err).Str("jobId", job.ID).Msg("release claim failed")
		}
		return
	}

	flipped, err := s.scheduledRepo.MarkSent(ctx, job.ID, deliveryID)
	if err != nil {
		log.Error().Err(err).Str("jobId", job.ID).Msg("mark sent failed")
		stats.Failed++
		return
	}
	if !flipped {
		// Delivery succeeded but the row was already sent: a competing pass
		// slipped through. The gateway call was still made once by us only,
		// so count it and move on.
		log.Warn().Str("jobId", job.ID).Msg("job already marked sent")
	}
	stats.Delivered++
	audit.Log(audit.Event{
		Type:    audit.EventDeliverySucceeded,
		TripID:  job.TripID,
		JobID:   job.ID,
		Details: map[string]interface{}{"deliveryId": deliveryID},
	})
}

// renderBody produces the outbound text for a job: a literal body if the
// operator supplied one, otherwise the template identified by template_id
// filled with the job's variables.
func renderBody(job *model.ScheduledMessage) string {
	if job.Body != nil && *job.Body != "" {
		return *job.Body
	}

	vars := map[string]string{}
	if job.Variables != nil {
		_ = json.Unmarshal(*job.Variables, &vars)
	}

	templateID := ""
	if job.TemplateID != nil {
		templateID = *job.TemplateID
	}

	switch model.MessageType(templateID) {
	case model.MessageTypeIntakeCompleted:
		return fmt.Sprintf(
			"Hi %s! The traveler details for %s are in. Chat with your trip assistant here: %s",
			orDefault(vars["participantName"], "there"),
			orDefault(vars["tripName"], "your trip"),
			vars["shareLink"],
		)
	default:
		// Unknown template: fall back to the raw variables so the message is
		// at least traceable rather than empty.
		parts := make([]string, 0, len(vars))
		for k, v := range vars {
			parts = append(parts, k+"="+v)
		}
		return strings.Join(parts, " ")
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
