package dispatch

import (
	"errors"
	"time"
)

const (
	DefaultAckTimeout  = 5 * time.Second
	DefaultSendTimeout = 10 * time.Second
)

// Config defines dispatch-related settings.
type Config struct {
	// AckTimeoutMS bounds the wait for the operator acknowledgment. An
	// attempt whose ack does not arrive in time resolves as completed.
	AckTimeoutMS int `json:"ack_timeout_ms"`
	// SendTimeoutMS is the hard deadline of the whole send step.
	SendTimeoutMS int `json:"send_timeout_ms"`
	// DefaultMode is the workflow a new board session starts in.
	DefaultMode string `json:"default_mode"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.SendTimeoutMS == 0 {
		c.SendTimeoutMS = int(DefaultSendTimeout / time.Millisecond)
	}
	if c.AckTimeoutMS == 0 {
		c.AckTimeoutMS = int(c.AckTimeout() / time.Millisecond)
	}
	if c.DefaultMode == "" {
		c.DefaultMode = "farm"
	}
}

// Validate checks the timeouts are coherent.
func (c Config) Validate() error {
	if c.AckTimeoutMS < 0 || c.SendTimeoutMS < 0 {
		return errors.New("dispatch: timeouts must not be negative")
	}
	if c.AckTimeout() > c.SendTimeout() {
		return errors.New("dispatch: ack_timeout_ms must not exceed send_timeout_ms")
	}
	return nil
}

// AckTimeout returns the ack wait as a duration. When unset it is
// DefaultAckTimeout capped at SendTimeout.
func (c Config) AckTimeout() time.Duration {
	if c.AckTimeoutMS <= 0 {
		return min(DefaultAckTimeout, c.SendTimeout())
	}
	return time.Duration(c.AckTimeoutMS) * time.Millisecond
}

// SendTimeout returns the send deadline as a duration, DefaultSendTimeout when unset.
func (c Config) SendTimeout() time.Duration {
	if c.SendTimeoutMS <= 0 {
		return DefaultSendTimeout
	}
	return time.Duration(c.SendTimeoutMS) * time.Millisecond
}
