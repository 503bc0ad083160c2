package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/mehmetymw/blocksink/internal/blockmeta"
	"github.com/mehmetymw/blocksink/internal/config"
	"github.com/mehmetymw/blocksink/internal/metrics"
	"github.com/mehmetymw/blocksink/internal/types"
)

const (
	sinkName = "postgres"

	upsertBlockMetadataStmt = "update_block_metadata"

	upsertBlockMetadataSQL = `INSERT INTO block (slot, blockhash, rewards, block_time, block_height, updated_on)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (slot) DO UPDATE SET
	blockhash = excluded.blockhash,
	rewards = excluded.rewards,
	block_time = excluded.block_time,
	block_height = excluded.block_height,
	updated_on = excluded.updated_on`
)

// Conn is the subset of *pgx.Conn used by the sink.
type Conn interface {
	Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Close(ctx context.Context) error
}

// BlockMetadataSink owns a connection and the prepared block upsert. All
// access to the connection is serialized by mu.
type BlockMetadataSink struct {
	mu      sync.Mutex
	conn    Conn
	stmt    *pgconn.StatementDescription
	closed  bool
	lastTS  time.Time
	now     func() time.Time
	metrics metrics.SinkMetrics
	logger  *zap.Logger
}

// New prepares the block upsert on conn. A *SchemaError is returned when
// the statement cannot be prepared; cfg is only used for diagnostics.
func New(ctx context.Context, conn Conn, cfg config.Postgres, m metrics.SinkMetrics, logger *zap.Logger) (*BlockMetadataSink, error) {
	logger.Info("Preparing block metadata upsert statement", zap.String("name", upsertBlockMetadataStmt))

	stmt, err := conn.Prepare(ctx, upsertBlockMetadataStmt, upsertBlockMetadataSQL)
	if err != nil {
		msg := fmt.Sprintf("failed to prepare the block metadata upsert on the PostgreSQL database: (%v) host: %q user: %q config: %s",
			err, cfg.Host, cfg.User, cfg)
		logger.Error("Block metadata statement preparation failed", zap.String("msg", msg), zap.Error(err))
		return nil, &SchemaError{Msg: msg, Err: err}
	}

	logger.Info("Block metadata sink ready")
	return &BlockMetadataSink{
		conn:    conn,
		stmt:    stmt,
		now:     time.Now,
		metrics: m,
		logger:  logger,
	}, nil
}

// UpdateBlockMetadata converts info and upserts it. Events whose unsigned
// fields do not fit the int64 columns are rejected rather than wrapped.
func (s *BlockMetadataSink) UpdateBlockMetadata(ctx context.Context, info *types.ReplicaBlockInfo) error {
	if field, ok := blockmeta.InRange(info); !ok {
		msg := fmt.Sprintf("failed to persist block metadata for slot %d: %s exceeds the range of a BIGINT column", info.Slot, field)
		s.logger.Error("Block metadata out of range", zap.Uint64("slot", info.Slot), zap.String("field", field))
		s.metrics.Writes(sinkName, "error").Inc()
		return &UpdateError{Msg: msg}
	}
	return s.Upsert(ctx, blockmeta.FromReplica(info))
}

// Upsert executes the prepared statement for row, stamping updated_on with
// the current UTC time.
func (s *BlockMetadataSink) Upsert(ctx context.Context, row blockmeta.BlockRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.stmt == nil {
		s.logger.Error("Block metadata sink is not ready", zap.Int64("slot", row.Slot), zap.Bool("closed", s.closed))
		s.metrics.Writes(sinkName, "error").Inc()
		return &UpdateError{Msg: "failed to persist block metadata: sink is not ready"}
	}

	updatedOn := s.stamp()

	timer := s.metrics.Latency(sinkName)
	_, err := s.conn.Exec(ctx, s.stmt.Name,
		row.Slot,
		row.Blockhash,
		row.Rewards,
		row.BlockTime,
		row.BlockHeight,
		updatedOn,
	)
	timer.ObserveDuration()

	if err != nil {
		msg := fmt.Sprintf("failed to persist the block metadata update to the PostgreSQL database: %v", err)
		s.logger.Error(msg, zap.Int64("slot", row.Slot), zap.Error(err))
		s.metrics.Writes(sinkName, "error").Inc()
		return &UpdateError{Msg: msg, Err: err}
	}
	s.metrics.Writes(sinkName, "ok").Inc()
	return nil
}

// stamp returns the updated_on value for the next write. It never goes
// backwards on one sink, even if the wall clock does. Caller holds mu.
func (s *BlockMetadataSink) stamp() time.Time {
	ts := s.now().UTC()
	if ts.Before(s.lastTS) {
		ts = s.lastTS
	}
	s.lastTS = ts
	return ts
}

// Close closes the connection. Later writes fail with *UpdateError.
func (s *BlockMetadataSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Info("Closing block metadata sink")
	return s.conn.Close(context.Background())
}
