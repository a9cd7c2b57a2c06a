package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// TriggerExecutor runs one execution cycle for a due vault
type TriggerExecutor interface {
	ExecuteTrigger(triggerID uint64) error
}

// Processor drives due triggers in the background so vaults execute even when
// no external keeper submits ExecuteTrigger calls.
type Processor struct {
	scheduler    *Service
	executor     TriggerExecutor
	processDelay time.Duration
	batchSize    int
}

func NewProcessor(scheduler *Service, executor TriggerExecutor) *Processor {
	return &Processor{
		scheduler:    scheduler,
		executor:     executor,
		processDelay: 10 * time.Second,
		batchSize:    50,
	}
}

// Start begins the trigger processing loop
func (p *Processor) Start(ctx context.Context) {
	logger := log.With().Str("component", "trigger_processor").Logger()
	logger.Info().Msg("starting trigger processor")

	ticker := time.NewTicker(p.processDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down trigger processor")
			return
		case <-ticker.C:
			if err := p.processDueTriggers(); err != nil {
				logger.Error().Err(err).Msg("failed to process due triggers")
			}
		}
	}
}

func (p *Processor) processDueTriggers() error {
	logger := log.With().Str("component", "trigger_processor").Logger()

	ids, err := p.scheduler.GetDueTriggerIDs(time.Now(), p.batchSize)
	if err != nil {
		return err
	}

	if len(ids) == 0 {
		return nil
	}

	logger.Info().Int("due_count", len(ids)).Msg("processing due triggers")

	for _, id := range ids {
		if err := p.executor.ExecuteTrigger(id); err != nil {
			// A trigger can go stale between listing and execution; that is
			// not a processor failure.
			if errors.Is(err, ErrTriggerNotDue) {
				continue
			}
			logger.Error().
				Err(err).
				Uint64("trigger_id", id).
				Msg("failed to execute trigger")
			continue
		}
	}

	return nil
}
