// Package postgres persists block metadata into the block table of a
// PostgreSQL database.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/tracelog"
	"go.uber.org/zap"

	"github.com/mehmetymw/blocksink/internal/config"
)

// Types the block table depends on. The array type must come after its
// element type, and the composite after the enum it references.
var rewardTypeNames = []string{`"RewardType"`, `"Reward"`, `"_Reward"`}

// Connect opens a dedicated connection for the block metadata sink and
// registers the reward types so that []blockmeta.DbReward can be encoded.
func Connect(ctx context.Context, cfg config.Postgres, logger *zap.Logger) (*pgx.Conn, error) {
	connCfg, err := pgx.ParseConfig(cfg.ConnString())
	if err != nil {
		logger.Error("Failed to parse PostgreSQL connection config", zap.Error(err))
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	return connect(ctx, connCfg, cfg, logger)
}

func connect(ctx context.Context, connCfg *pgx.ConnConfig, cfg config.Postgres, logger *zap.Logger) (*pgx.Conn, error) {
	connCfg.Tracer = &tracelog.TraceLog{
		LogLevel: tracelog.LogLevelWarn,
		Logger:   &pgxLogger{logger: logger.With(zap.String("db", connCfg.Database))},
	}

	logger.Info("Connecting to PostgreSQL",
		zap.String("host", connCfg.Host),
		zap.Uint16("port", connCfg.Port),
		zap.String("database", connCfg.Database),
		zap.String("user", connCfg.User))

	conn, err := pgx.ConnectConfig(ctx, connCfg)
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL", zap.Error(err))
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := registerRewardTypes(ctx, conn, cfg); err != nil {
		logger.Error("Failed to register reward types", zap.Error(err))
		conn.Close(ctx)
		return nil, err
	}
	return conn, nil
}

func registerRewardTypes(ctx context.Context, conn *pgx.Conn, cfg config.Postgres) error {
	for _, name := range rewardTypeNames {
		t, err := conn.LoadType(ctx, name)
		if err != nil {
			return &SchemaError{
				Msg: fmt.Sprintf("failed to load type %s from the PostgreSQL database: (%v) host: %q user: %q config: %s",
					name, err, cfg.Host, cfg.User, cfg),
				Err: err,
			}
		}
		conn.TypeMap().RegisterType(t)
	}
	return nil
}

// pgxLogger forwards pgx trace output to zap.
type pgxLogger struct {
	logger *zap.Logger
}

func (l *pgxLogger) Log(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	fields := make([]zap.Field, 0, len(data))
	for k, v := range data {
		fields = append(fields, zap.Any(k, v))
	}
	switch level {
	case tracelog.LogLevelTrace, tracelog.LogLevelDebug:
		l.logger.Debug(msg, fields...)
	case tracelog.LogLevelInfo:
		l.logger.Info(msg, fields...)
	case tracelog.LogLevelWarn:
		l.logger.Warn(msg, fields...)
	default:
		l.logger.Error(msg, fields...)
	}
}
