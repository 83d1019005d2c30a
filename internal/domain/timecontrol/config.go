package timecontrol

import (
	"errors"
	"fmt"
)

// Kind selects the clock rules.
type Kind string

const (
	KindFischer   Kind = "fischer"
	KindByoYomi   Kind = "byoyomi"
	KindUnlimited Kind = "unlimited"
)

var ErrInvalidConfig = errors.New("invalid_time_control")

// Config describes a time control. All durations are whole milliseconds.
//
// Fischer uses InitialMs, IncrementMs and MaxMs (0 = no cap).
// Byo-Yomi uses InitialMs as main time followed by Periods periods of PeriodMs.
type Config struct {
	Kind        Kind  `json:"kind" yaml:"kind"`
	InitialMs   int64 `json:"initial_ms" yaml:"initial_ms"`
	IncrementMs int64 `json:"increment_ms,omitempty" yaml:"increment_ms"`
	MaxMs       int64 `json:"max_ms,omitempty" yaml:"max_ms"`
	Periods     int   `json:"periods,omitempty" yaml:"periods"`
	PeriodMs    int64 `json:"period_ms,omitempty" yaml:"period_ms"`
}

func (c Config) Validate() error {
	switch c.Kind {
	case KindUnlimited:
		return nil
	case KindFischer:
		if c.InitialMs <= 0 || c.IncrementMs < 0 {
			return fmt.Errorf("%w: fischer needs positive initial time", ErrInvalidConfig)
		}
		if c.MaxMs != 0 && c.MaxMs < c.InitialMs {
			return fmt.Errorf("%w: max time below initial time", ErrInvalidConfig)
		}
		return nil
	case KindByoYomi:
		if c.InitialMs < 0 || c.Periods < 0 || c.PeriodMs <= 0 {
			return fmt.Errorf("%w: byo-yomi needs a positive period", ErrInvalidConfig)
		}
		if c.InitialMs == 0 && c.Periods == 0 {
			return fmt.Errorf("%w: byo-yomi without any time", ErrInvalidConfig)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidConfig, c.Kind)
	}
}
