package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hrrr-inventory/internal/config"
	"github.com/couchcryptid/hrrr-inventory/internal/domain"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func testEvent() domain.InventoryWritten {
	return domain.InventoryWritten{
		Region:          domain.RegionCONUS,
		Product:         domain.ProductSurface,
		ForecastHourSet: domain.FH00_01,
		CycleType:       "standard",
		Path:            "/data/inventory__conus__sfc__fh00-01__standard.csv.gz",
		Rows:            340,
		ForecastHours:   []int{0, 1},
		WrittenAt:       time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC),
	}
}

func TestSerializeToMessage(t *testing.T) {
	msg, err := serializeToMessage(testEvent())
	require.NoError(t, err)

	assert.Equal(t, []byte("inventory__conus__sfc__fh00-01__standard.csv.gz"), msg.Key)
	assert.Contains(t, string(msg.Value), `"forecast_hour_set":"fh00-01"`)
	assert.Contains(t, string(msg.Value), `"forecast_hours":[0,1]`)
	require.Len(t, msg.Headers, 4)
	assert.Equal(t, "region", msg.Headers[0].Key)
	assert.Equal(t, []byte("conus"), msg.Headers[0].Value)
	assert.Equal(t, "written_at", msg.Headers[3].Key)
	assert.Equal(t, []byte("2024-05-01T12:30:00Z"), msg.Headers[3].Value)

	var decoded domain.InventoryWritten
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, testEvent(), decoded)
}

func TestWriter_Notify(t *testing.T) {
	fw := &fakeWriter{}
	w := &Writer{writer: fw, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	require.NoError(t, w.Notify(context.Background(), testEvent()))
	require.Len(t, fw.msgs, 1)
	assert.Equal(t, "inventory__conus__sfc__fh00-01__standard.csv.gz", string(fw.msgs[0].Key))

	require.NoError(t, w.Close())
	assert.True(t, fw.closed)
}

func TestWriter_NotifyError(t *testing.T) {
	fw := &fakeWriter{err: errors.New("leader not available")}
	w := &Writer{writer: fw, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	err := w.Notify(context.Background(), testEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
}

func TestNewWriter_UsesConfig(t *testing.T) {
	w := NewWriter(&config.Config{KafkaBrokers: []string{"localhost:9092"}, KafkaTopic: "inventories"}, slog.Default())
	kw, ok := w.writer.(*kafkago.Writer)
	require.True(t, ok)
	assert.Equal(t, "inventories", kw.Topic)
	assert.Equal(t, kafkago.RequireAll, kw.RequiredAcks)
	require.NoError(t, w.Close())
}
