package sim

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Loop steps a simulator in real time, one tick per control period of the
// clock. Commands may be issued to the servos concurrently.
type Loop struct {
	sim    *Simulator
	clock  clock.Clock
	logger *zap.Logger
	onTick func(now int32)
}

func NewLoop(sim *Simulator, clk clock.Clock, logger *zap.Logger) *Loop {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{sim: sim, clock: clk, logger: logger}
}

// OnTick registers fn to run after every step, from the loop goroutine.
func (l *Loop) OnTick(fn func(now int32)) {
	l.onTick = fn
}

// Run steps until ctx is done. Servo failures are logged and the loop goes
// on; a plant failure ends it.
func (l *Loop) Run(ctx context.Context) error {
	ticker := l.clock.Ticker(TickDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		l.sim.mu.Lock()
		err := l.sim.advance()
		if err == nil {
			if uerr := l.sim.update(); uerr != nil {
				l.logger.Warn("servo update failed", zap.Error(uerr))
			}
		}
		now := l.sim.now
		l.sim.mu.Unlock()
		if err != nil {
			l.logger.Error("plant failed", zap.Error(err))
			return err
		}

		if l.onTick != nil {
			l.onTick(now)
		}
	}
}
