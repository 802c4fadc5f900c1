package writer

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/pkg/errors"

	"SketchSpectra/internal/config"
	"SketchSpectra/internal/measure"
	"SketchSpectra/internal/pkg/logger"
)

const createReportsTableStatement = `
CREATE TABLE IF NOT EXISTS %s (
    Timestamp DateTime,
    Sketch    String,
    Op        String,
    Metric    String,
    Value     String
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (Sketch, Timestamp);
`

// ClickHouseWriter streams report rows into a ClickHouse table.
type ClickHouseWriter struct {
	conn  driver.Conn
	table string
}

// NewClickHouseWriter connects to ClickHouse and ensures the report table
// exists.
func NewClickHouseWriter(cfg config.ClickHouseSink) (*ClickHouseWriter, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "connect to clickhouse")
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, errors.Wrap(err, "ping clickhouse")
	}

	table := cfg.Table
	if table == "" {
		table = "sketch_reports"
	}
	stmt := fmt.Sprintf(createReportsTableStatement, table)
	if err := conn.Exec(context.Background(), stmt); err != nil {
		return nil, errors.Wrapf(err, "create table %s", table)
	}
	logger.Infof("Connected to ClickHouse, reports go to table %s.", table)
	return &ClickHouseWriter{conn: conn, table: table}, nil
}

// Write inserts one row per (sketch, op, metric).
func (w *ClickHouseWriter) Write(reports []*measure.Report) error {
	ctx := context.Background()
	batch, err := w.conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s", w.table))
	if err != nil {
		return errors.Wrap(err, "prepare batch")
	}
	now := time.Now()
	for _, r := range reports {
		for _, row := range r.Rows() {
			if err := batch.Append(now, r.Sketch, row[0], row[1], row[2]); err != nil {
				return errors.Wrap(err, "append row")
			}
		}
	}
	if err := batch.Send(); err != nil {
		return errors.Wrap(err, "send batch")
	}
	return nil
}

// Close drops the connection.
func (w *ClickHouseWriter) Close() error { return w.conn.Close() }
