package configuration

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// maximumSeconds is the exclusive upper bound on durations specified in
// seconds, beyond which they can't be represented as a time.Duration.
const maximumSeconds = float64(math.MaxInt64) / float64(time.Second)

// SecondsToDuration converts a number of seconds to a Duration. The value must
// be finite, non-negative, and representable.
func SecondsToDuration(seconds float64) (Duration, error) {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0, errors.New("duration must be finite")
	} else if seconds < 0 {
		return 0, errors.New("duration must be non-negative")
	} else if seconds >= maximumSeconds {
		return 0, errors.New("duration too large")
	}
	return Duration(seconds * float64(time.Second)), nil
}

// Duration is a time.Duration that can be specified in YAML either as a number
// of seconds (e.g. 0.5) or as a Go duration string (e.g. "750ms").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.UnmarshalYAML.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	// Ensure that we're dealing with a scalar.
	if value.Kind != yaml.ScalarNode {
		return errors.New("duration must be a scalar value")
	}

	// Handle numeric specifications.
	if value.Tag == "!!int" || value.Tag == "!!float" {
		var seconds float64
		if err := value.Decode(&seconds); err != nil {
			return errors.Wrap(err, "unable to decode seconds")
		}
		duration, err := SecondsToDuration(seconds)
		if err != nil {
			return err
		}
		*d = duration
		return nil
	}

	// Handle duration strings.
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return errors.Wrap(err, "unable to parse duration")
	} else if duration < 0 {
		return errors.New("duration must be non-negative")
	}
	*d = Duration(duration)

	// Success.
	return nil
}
