// Package toolloop runs the bounded tool-calling exchange with the inference
// backend: detect a tool call, invoke the capability, then ask the model again
// with the result in the conversation.
package toolloop

import (
	"fmt"

	"github.com/tjfontaine/courtside/internal/domain"
)

// DefaultMaxAttempts is the attempt budget for obtaining and executing a tool call.
const DefaultMaxAttempts = 10

// State is the position of a request in the retry state machine.
type State int

const (
	// StateAttempting means an attempt is in progress or another may start.
	StateAttempting State = iota
	// StateSucceeded means a tool call was obtained and its capability ran.
	StateSucceeded
	// StateDirectAnswer means the model answered without calling a tool.
	StateDirectAnswer
	// StateExhausted means the budget was spent on unusable output or failed invocations.
	StateExhausted
	// StateFailedTransport means the last failure before giving up was a backend failure.
	StateFailedTransport
)

func (s State) String() string {
	switch s {
	case StateAttempting:
		return "attempting"
	case StateSucceeded:
		return "succeeded"
	case StateDirectAnswer:
		return "direct_answer"
	case StateExhausted:
		return "exhausted"
	case StateFailedTransport:
		return "failed_transport"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further attempts will be made.
func (s State) Terminal() bool {
	return s != StateAttempting
}

// Controller tracks attempts against a fixed budget. It is owned by a single
// request and is not safe for concurrent use.
type Controller struct {
	max     int
	attempt int
	state   State
	lastErr error
}

// NewController creates a Controller allowing maxAttempts attempts.
// Non-positive values use DefaultMaxAttempts.
func NewController(maxAttempts int) *Controller {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Controller{max: maxAttempts}
}

// Begin starts the next attempt. It returns false once the controller is
// terminal or the budget is spent.
func (c *Controller) Begin() bool {
	if c.state.Terminal() || c.attempt >= c.max {
		return false
	}
	c.attempt++
	return true
}

// Attempt returns the 1-based number of the current attempt.
func (c *Controller) Attempt() int { return c.attempt }

// MaxAttempts returns the budget.
func (c *Controller) MaxAttempts() int { return c.max }

// State returns the current state.
func (c *Controller) State() State { return c.state }

// LastError returns the most recent attempt failure.
func (c *Controller) LastError() error { return c.lastErr }

// Fail records a failed attempt. When the budget is spent the controller
// becomes terminal, as FAILED_TRANSPORT for backend failures and EXHAUSTED
// otherwise. It reports whether another attempt may follow.
func (c *Controller) Fail(err error) bool {
	if c.state.Terminal() {
		return false
	}
	c.lastErr = err
	if c.attempt < c.max {
		return true
	}
	c.state = terminalFor(err)
	return false
}

// Abort ends the loop after a failure that must not be retried.
func (c *Controller) Abort(err error) {
	if c.state.Terminal() {
		return
	}
	c.lastErr = err
	c.state = terminalFor(err)
}

// Succeed marks the tool call as obtained and executed.
func (c *Controller) Succeed() {
	if !c.state.Terminal() {
		c.state = StateSucceeded
	}
}

// Answer marks the model as having answered without a tool call.
func (c *Controller) Answer() {
	if !c.state.Terminal() {
		c.state = StateDirectAnswer
	}
}

// Err returns the user-facing failure for a failed terminal state, nil otherwise.
func (c *Controller) Err() error {
	switch c.state {
	case StateExhausted, StateFailedTransport:
		return fmt.Errorf("Failed to execute tool call after %d attempts: %w", c.attempt, c.lastErr)
	default:
		return nil
	}
}

func terminalFor(err error) State {
	if domain.IsRetryable(err) {
		return StateFailedTransport
	}
	return StateExhausted
}
