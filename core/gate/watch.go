package gate

import (
	"runtime/debug"
	"time"
)

// startTimer starts a watchdog that logs the stack of the caller if the
// returned channel is not closed before the hold warning delay. It returns nil
// when the warning is disabled.
func (g *PermitGate) startTimer(mode, msg string) chan struct{} {
	if g.holdWarning <= 0 {
		return nil
	}

	done := make(chan struct{})
	stack := debug.Stack()
	delay := g.holdWarning
	logger := g.logger

	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-timer.C:
			logger.Warn().
				Str("mode", mode).
				Dur("delay", delay).
				Str("stack", string(stack)).
				Msg(msg)
		case <-done:
		}
	}()

	return done
}

func stopTimer(done chan struct{}) {
	if done != nil {
		close(done)
	}
}
