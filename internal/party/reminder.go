package party

import (
	"context"
	"fmt"
	"time"

	"example.com/partybot/internal/metrics"

	"github.com/rs/zerolog/log"
)

// SweepReminders finds open parties inside their reminder window and posts
// a ping into each party's thread (falling back to the listing channel).
// Each event is marked reminded before its message is sent so a flapping
// platform can't double-ping; a dropped reminder is acceptable, a duplicate
// is not.
func (m *Manager) SweepReminders(ctx context.Context) error {
	due, err := m.events.ListDueReminders(ctx, time.Now().UTC())
	if err != nil {
		return err
	}

	for _, event := range due {
		if err := m.events.MarkReminded(ctx, event.ID); err != nil {
			log.Warn().Err(err).Str("event_id", event.ID).Msg("Failed to mark reminder sent")
			continue
		}

		channelID := event.ThreadID
		if channelID == "" {
			channelID = event.ChannelID
		}
		content := fmt.Sprintf("⏰ **%s** starts <t:%d:R> — get ready!", event.Title, event.StartTime.Unix())
		if err := m.platform.SendChannelMessage(ctx, channelID, content); err != nil {
			log.Warn().Err(err).Str("event_id", event.ID).Msg("Failed to send reminder")
			continue
		}

		m.metrics.IncrementCounter(metrics.CounterRemindersSent)
		log.Info().Str("event_id", event.ID).Time("start", event.StartTime).Msg("Reminder sent")
	}
	return nil
}
