//go:build integration

package integration_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/modules/minio"

	"github.com/couchcryptid/hrrr-inventory/internal/domain"
)

const (
	minioUsername = "minioadmin"
	minioPassword = "minioadmin"
)

var refDate = time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// surfaceCatalog covers only conus sfc fh00-01 under the standard cycle, so a
// run fetches exactly two index files.
func surfaceCatalog(t *testing.T) domain.Catalog {
	t.Helper()
	cat, err := domain.NewCatalog(domain.CatalogSpec{
		Regions:    []domain.RegionConfig{{Region: domain.RegionCONUS, ModelID: "hrrr", Dir: "conus"}},
		Products:   []domain.ProductSets{{Product: domain.ProductSurface, Sets: []domain.ForecastHourSet{domain.FH00_01}}},
		CycleTypes: []domain.CycleType{domain.CycleStandard},
	})
	require.NoError(t, err)
	return cat
}

// indexFile returns a two-message idx body for a t03z run at forecast hour fh.
func indexFile(fh int) string {
	ft := "anl"
	if fh > 0 {
		ft = fmt.Sprintf("%d hour fcst", fh)
	}
	return fmt.Sprintf("1:0:d=2024050103:TMP:2 m above ground:%[1]s:\n2:52311:d=2024050103:WIND:10 m above ground:%[1]s:\n", ft)
}

func indexPath(fh int) string {
	return fmt.Sprintf("hrrr.20240501/conus/hrrr.t03z.wrfsfcf%02d.grib2.idx", fh)
}

type stubReference struct{}

func (stubReference) Descriptions(context.Context, domain.ReferenceKey) ([]domain.VariableDescription, error) {
	return []domain.VariableDescription{
		{Variable: "TMP", Description: "Temperature", Unit: "K"},
		{Variable: "WIND", Description: "Wind Speed (Gust)", Unit: "m/s"},
	}, nil
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("hrrr-inventory-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err, "get kafka brokers")
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err, "dial broker")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "find controller")

	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err, "dial controller")
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}), "create topic")
}

func startMinio(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := minio.Run(ctx,
		"minio/minio:RELEASE.2024-01-16T16-07-38Z",
		minio.WithUsername(minioUsername),
		minio.WithPassword(minioPassword),
	)
	require.NoError(t, err, "start minio container")
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx)
	require.NoError(t, err, "get minio connection string")
	return "http://" + connStr
}
