package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/domain/reservation"
)

func TestAuditHandler(t *testing.T) {
	t.Run("通知を監査ログに書く", func(t *testing.T) {
		core, logs := observer.New(zapcore.InfoLevel)
		h := auditHandler(zap.New(core))

		ev := reservation.LifecycleEvent{
			EventID: "ev-1", ReservationID: "r-1", VehicleID: "v-1", HolderID: "u-1",
			NewState: reservation.StatusConfirmed, Timestamp: time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC),
		}
		body, err := json.Marshal(ev)
		require.NoError(t, err)

		assert.NoError(t, h(context.Background(), kafka.Message{Value: body, Offset: 7}))

		entries := logs.FilterMessage("reservation lifecycle").All()
		require.Len(t, entries, 1)
		fields := entries[0].ContextMap()
		assert.Equal(t, "reservation-confirmed", fields["event"])
		assert.Equal(t, "r-1", fields["reservation_id"])
		assert.Equal(t, int64(7), fields["offset"])
	})

	t.Run("壊れたメッセージは警告して読み飛ばす", func(t *testing.T) {
		core, logs := observer.New(zapcore.InfoLevel)
		h := auditHandler(zap.New(core))

		assert.NoError(t, h(context.Background(), kafka.Message{Value: []byte("{not json")}))
		assert.Equal(t, 1, logs.FilterMessage("malformed lifecycle event").Len())
		assert.Equal(t, 0, logs.FilterMessage("reservation lifecycle").Len())
	})
}
