// Package config holds the protocol thresholds and control parameters of a
// run. Values are read once at startup from a TOML file layered over the
// defaults and must not change afterwards.
package config

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/toml"
)

// Protocol holds the thresholds used by the gap coordinators.
// All comparisons against them are strict.
type Protocol struct {
	MaxConnectionDistance  float64 `toml:"max_connection_distance"`  // metres
	MaxRelativeSpeedError  float64 `toml:"max_relative_speed_error"` // m/s
	MaxGapDistanceError    float64 `toml:"max_gap_distance_error"`   // metres
	DesiredGap             float64 `toml:"desired_gap"`              // metres, platoon spacing
	StandaloneGapThreshold float64 `toml:"standalone_gap_threshold"` // metres
	MaxPlatoonLength       int     `toml:"max_platoon_length"`       // vehicles, head included
}

// Control holds the gains of the longitudinal controller driven by the
// membership state. It is only read by the tick driver.
type Control struct {
	TimeHeadway   float64 `toml:"time_headway"`   // seconds, ACC following
	StandstillGap float64 `toml:"standstill_gap"` // metres, ACC following
	GapGain       float64 `toml:"gap_gain"`       // 1/s²
	SpeedGain     float64 `toml:"speed_gain"`     // 1/s
	CruiseGain    float64 `toml:"cruise_gain"`    // 1/s, free road
	SplitGap      float64 `toml:"split_gap"`      // metres, opened while splitting
}

// Config is the full run configuration.
type Config struct {
	Protocol Protocol `toml:"protocol"`
	Control  Control  `toml:"control"`
}

// Default returns the default parameters.
func Default() Config {
	return Config{
		Protocol: Protocol{
			MaxConnectionDistance:  100,
			MaxRelativeSpeedError:  0.1,
			MaxGapDistanceError:    0.1,
			DesiredGap:             10,
			StandaloneGapThreshold: 100,
			MaxPlatoonLength:       7,
		},
		Control: Control{
			TimeHeadway:   1.4,
			StandstillGap: 5,
			GapGain:       0.2,
			SpeedGain:     0.7,
			CruiseGain:    0.3,
			SplitGap:      110,
		},
	}
}

// Load parses the TOML config file at path over the defaults and validates
// the result.
func Load(path string) (Config, error) {
	conf := Default()
	md, err := toml.DecodeFile(path, &conf)
	if err != nil {
		return Config{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, &Error{Field: undecoded[0].String(), Reason: "unknown key"}
	}
	if err := conf.Validate(); err != nil {
		return Config{}, err
	}
	return conf, nil
}

// Validate checks every section and returns all problems at once.
func (c Config) Validate() error {
	errs := []error{c.Protocol.Validate(), c.Control.Validate()}
	if c.Control.SplitGap <= c.Protocol.StandaloneGapThreshold {
		errs = append(errs, &Error{
			Field:  "control.split_gap",
			Reason: "must exceed protocol.standalone_gap_threshold or a split never completes",
		})
	}
	return errors.Join(errs...)
}

// Validate checks that every threshold is usable.
func (p Protocol) Validate() error {
	var errs []error
	positive := func(field string, v float64) {
		if !(v > 0) {
			errs = append(errs, &Error{Field: field, Reason: fmt.Sprintf("must be positive, got %v", v)})
		}
	}
	positive("protocol.max_connection_distance", p.MaxConnectionDistance)
	positive("protocol.max_relative_speed_error", p.MaxRelativeSpeedError)
	positive("protocol.max_gap_distance_error", p.MaxGapDistanceError)
	positive("protocol.desired_gap", p.DesiredGap)
	positive("protocol.standalone_gap_threshold", p.StandaloneGapThreshold)

	if p.MaxPlatoonLength < 2 {
		errs = append(errs, &Error{
			Field:  "protocol.max_platoon_length",
			Reason: fmt.Sprintf("must allow at least two vehicles, got %d", p.MaxPlatoonLength),
		})
	}
	if p.DesiredGap >= p.MaxConnectionDistance {
		errs = append(errs, &Error{
			Field:  "protocol.desired_gap",
			Reason: "must be below max_connection_distance",
		})
	}
	return errors.Join(errs...)
}

// Validate checks the controller gains.
func (c Control) Validate() error {
	var errs []error
	if c.TimeHeadway < 0 {
		errs = append(errs, &Error{Field: "control.time_headway", Reason: "must not be negative"})
	}
	if c.StandstillGap < 0 {
		errs = append(errs, &Error{Field: "control.standstill_gap", Reason: "must not be negative"})
	}
	gains := []struct {
		field string
		v     float64
	}{
		{"control.gap_gain", c.GapGain},
		{"control.speed_gain", c.SpeedGain},
		{"control.cruise_gain", c.CruiseGain},
	}
	for _, g := range gains {
		if !(g.v > 0) {
			errs = append(errs, &Error{Field: g.field, Reason: "must be positive"})
		}
	}
	return errors.Join(errs...)
}

// Error is a configuration error. It is fatal and reported before the first
// tick.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}
