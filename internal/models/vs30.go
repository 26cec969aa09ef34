package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Vs30 is a site class keyed by time-averaged shear-wave velocity in the
// upper 30 m.
type Vs30 int

const (
	VS2000 Vs30 = iota
	VS1150
	VS760
	VS537
	VS360
	VS259
	VS180
)

var vs30Codec = newCodec[Vs30]("vs30",
	codecEntry{"2000", "2000 m/s (Site class A)"},
	codecEntry{"1150", "1150 m/s (Site class B)"},
	codecEntry{"760", "760 m/s (B/C boundary)"},
	codecEntry{"537", "537 m/s (Site class C)"},
	codecEntry{"360", "360 m/s (C/D boundary)"},
	codecEntry{"259", "259 m/s (Site class D)"},
	codecEntry{"180", "180 m/s (D/E boundary)"},
)

var vs30Velocities = []float64{2000, 1150, 760, 537, 360, 259, 180}

// Vs30FromValue returns the site class whose velocity equals v exactly.
func Vs30FromValue(v float64) (Vs30, error) {
	for i, vel := range vs30Velocities {
		if vel == v {
			return Vs30(i), nil
		}
	}
	return 0, fmt.Errorf("%w: vs30 %v", ErrUnknownValue, v)
}

// ParseVs30 parses a numeric velocity ("760", "760.0").
func ParseVs30(s string) (Vs30, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: vs30 %q is not a number", ErrUnknownValue, s)
	}
	return Vs30FromValue(v)
}

func Vs30s() []Vs30 { return vs30Codec.values() }

func (v Vs30) Velocity() float64 {
	if !vs30Codec.valid(v) {
		return 0
	}
	return vs30Velocities[v]
}

func (v Vs30) Value() string     { return vs30Codec.value(v) }
func (v Vs30) Display() string   { return vs30Codec.display(v) }
func (v Vs30) DisplayOrder() int { return int(v) }
func (v Vs30) String() string    { return v.Value() }

func (v Vs30) MarshalJSON() ([]byte, error) { return encodeJSON(v) }

func (v *Vs30) UnmarshalJSON(data []byte) error {
	s, err := decodeJSON(data)
	if err != nil {
		return err
	}
	parsed, err := ParseVs30(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v Vs30) MarshalText() ([]byte, error) { return []byte(v.Value()), nil }

func (v *Vs30) UnmarshalText(text []byte) error {
	parsed, err := ParseVs30(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
