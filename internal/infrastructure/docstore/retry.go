package docstore

import "time"

// The retry loop is driven by a small explicit state machine so that the
// different triggers keep their distinct semantics: a rate-limit response
// backs off for the server-specified delay WITHOUT consuming an attempt,
// while transient failures (timeouts, connection errors, 5xx) consume one
// attempt each and back off exponentially until the budget is spent.

type retryState int

const (
	stateIdle retryState = iota
	stateAttempting
	stateBackoff
	stateExhausted
)

type retryEvent int

const (
	eventAttempt retryEvent = iota
	eventRateLimited
	eventTransientFailure
	eventResolved
)

type retryMachine struct {
	state       retryState
	attempts    int // consumed attempts
	maxAttempts int
	delay       time.Duration
	lastErr     error
}

func newRetryMachine(maxAttempts int) *retryMachine {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &retryMachine{state: stateIdle, maxAttempts: maxAttempts}
}

// observe applies one event and returns the resulting state. The transition
// table is total: unexpected (state, event) pairs keep the current state.
func (m *retryMachine) observe(ev retryEvent) retryState {
	switch {
	case ev == eventAttempt && (m.state == stateIdle || m.state == stateBackoff):
		m.state = stateAttempting

	case ev == eventRateLimited && m.state == stateAttempting:
		// Does not touch m.attempts: the same attempt slot is retried.
		m.state = stateBackoff

	case ev == eventTransientFailure && m.state == stateAttempting:
		m.attempts++
		if m.attempts >= m.maxAttempts {
			m.state = stateExhausted
		} else {
			m.delay = time.Duration(1<<uint(m.attempts-1)) * time.Second
			m.state = stateBackoff
		}

	case ev == eventResolved && m.state == stateAttempting:
		m.state = stateIdle
	}
	return m.state
}

// rateLimited records a server-specified backoff delay.
func (m *retryMachine) rateLimited(delay time.Duration) retryState {
	m.delay = delay
	return m.observe(eventRateLimited)
}

func (m *retryMachine) failed(err error) retryState {
	m.lastErr = err
	return m.observe(eventTransientFailure)
}
