package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mehmetymw/blocksink/internal/types"
)

// Notifier is the host-facing entry point. It hands each block to every
// configured sink synchronously, in order.
type Notifier struct {
	sinks           []namedSink
	panicOnDBErrors bool
	logger          *zap.Logger

	mu        sync.Mutex
	lastSlot  uint64
	written   int
	failed    int
	lastError string
}

type namedSink struct {
	name string
	sink types.BlockSink
}

func New(panicOnDBErrors bool, logger *zap.Logger) *Notifier {
	logger.Info("Creating block notifier", zap.Bool("panic_on_db_errors", panicOnDBErrors))
	return &Notifier{panicOnDBErrors: panicOnDBErrors, logger: logger}
}

// AddSink registers a sink. Sinks receive events in registration order.
func (n *Notifier) AddSink(name string, sink types.BlockSink) {
	n.logger.Debug("Added sink", zap.String("sink", name))
	n.sinks = append(n.sinks, namedSink{name: name, sink: sink})
}

// NotifyBlockMetadata delivers info to all sinks. A failing sink does not
// stop delivery to the others; all failures are joined into the returned
// error. With panic_on_db_errors set, a failure terminates the process
// through the logger's fatal hook instead.
func (n *Notifier) NotifyBlockMetadata(ctx context.Context, info *types.ReplicaBlockInfo) error {
	if info == nil {
		return errors.New("nil block notification")
	}

	start := time.Now()
	var errs []error
	for _, s := range n.sinks {
		if err := s.sink.UpdateBlockMetadata(ctx, info); err != nil {
			n.logger.Error("Failed to update block metadata",
				zap.String("sink", s.name),
				zap.Uint64("slot", info.Slot),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	err := errors.Join(errs...)

	n.mu.Lock()
	if err != nil {
		n.failed++
		n.lastError = err.Error()
	} else {
		n.written++
		n.lastSlot = info.Slot
	}
	n.mu.Unlock()

	if err != nil {
		if n.panicOnDBErrors {
			n.logger.Fatal("Aborting on block metadata write failure", zap.Uint64("slot", info.Slot), zap.Error(err))
		}
		return err
	}

	n.logger.Debug("Block metadata delivered",
		zap.Uint64("slot", info.Slot),
		zap.Duration("duration", time.Since(start)))
	return nil
}

func (n *Notifier) Close() error {
	n.logger.Info("Closing notifier")
	var errs []error
	for _, s := range n.sinks {
		n.logger.Debug("Closing sink", zap.String("sink", s.name))
		if err := s.sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

type Status struct {
	LastSlot  uint64 `json:"last_slot"`
	Written   int    `json:"written"`
	Failed    int    `json:"failed"`
	LastError string `json:"last_error,omitempty"`
}

func (n *Notifier) Status() Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	return Status{LastSlot: n.lastSlot, Written: n.written, Failed: n.failed, LastError: n.lastError}
}
