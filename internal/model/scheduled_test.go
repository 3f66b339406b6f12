package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDueAt(t *testing.T) {
	t.Run("interprets schedule in the job's timezone", func(t *testing.T) {
		job := ScheduledMessage{
			SendDate: "2026-06-01",
			SendTime: "09:00",
			Timezone: "Europe/Amsterdam",
		}

		due, err := job.DueAt()
		require.NoError(t, err)

		// 09:00 CEST is 07:00 UTC.
		assert.Equal(t, time.Date(2026, 6, 1, 7, 0, 0, 0, time.UTC), due.UTC())
	})

	t.Run("same wall clock differs across timezones", func(t *testing.T) {
		ams := ScheduledMessage{SendDate: "2026-06-01", SendTime: "09:00", Timezone: "Europe/Amsterdam"}
		tokyo := ScheduledMessage{SendDate: "2026-06-01", SendTime: "09:00", Timezone: "Asia/Tokyo"}

		dueAms, err := ams.DueAt()
		require.NoError(t, err)
		dueTokyo, err := tokyo.DueAt()
		require.NoError(t, err)

		assert.True(t, dueTokyo.Before(dueAms))
	})

	t.Run("rejects unknown timezone", func(t *testing.T) {
		job := ScheduledMessage{SendDate: "2026-06-01", SendTime: "09:00", Timezone: "Not/AZone"}

		_, err := job.DueAt()
		assert.Error(t, err)
	})

	t.Run("rejects malformed schedule", func(t *testing.T) {
		job := ScheduledMessage{SendDate: "June 1st", SendTime: "9am", Timezone: "UTC"}

		_, err := job.DueAt()
		assert.Error(t, err)
	})
}
