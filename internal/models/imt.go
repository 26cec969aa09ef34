package models

import "strings"

// Imt is an intensity-measure type.
type Imt int

const (
	PGA Imt = iota
	SA0P1
	SA0P2
	SA0P3
	SA0P5
	SA0P75
	SA1P0
	SA2P0
	SA3P0
	SA4P0
	SA5P0
)

var imtCodec = newCodec[Imt]("imt",
	codecEntry{"PGA", "Peak Ground Acceleration"},
	codecEntry{"SA0P1", "0.10 Second Spectral Acceleration"},
	codecEntry{"SA0P2", "0.20 Second Spectral Acceleration"},
	codecEntry{"SA0P3", "0.30 Second Spectral Acceleration"},
	codecEntry{"SA0P5", "0.50 Second Spectral Acceleration"},
	codecEntry{"SA0P75", "0.75 Second Spectral Acceleration"},
	codecEntry{"SA1P0", "1.00 Second Spectral Acceleration"},
	codecEntry{"SA2P0", "2.00 Second Spectral Acceleration"},
	codecEntry{"SA3P0", "3.00 Second Spectral Acceleration"},
	codecEntry{"SA4P0", "4.00 Second Spectral Acceleration"},
	codecEntry{"SA5P0", "5.00 Second Spectral Acceleration"},
)

var imtPeriods = []float64{0.0, 0.1, 0.2, 0.3, 0.5, 0.75, 1.0, 2.0, 3.0, 4.0, 5.0}

func ParseImt(s string) (Imt, error) { return imtCodec.parse(s) }

// ParseImts parses a comma-separated IMT list, dropping duplicates and
// keeping first-seen order.
func ParseImts(s string) ([]Imt, error) {
	var out []Imt
	seen := make(map[Imt]bool)
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		imt, err := ParseImt(part)
		if err != nil {
			return nil, err
		}
		if seen[imt] {
			continue
		}
		seen[imt] = true
		out = append(out, imt)
	}
	return out, nil
}

func Imts() []Imt { return imtCodec.values() }

// Period is the spectral period in seconds; zero for PGA.
func (i Imt) Period() float64 {
	if !imtCodec.valid(i) {
		return 0
	}
	return imtPeriods[i]
}

func (i Imt) Value() string     { return imtCodec.value(i) }
func (i Imt) Display() string   { return imtCodec.display(i) }
func (i Imt) DisplayOrder() int { return int(i) }
func (i Imt) String() string    { return i.Value() }

func (i Imt) MarshalJSON() ([]byte, error) { return encodeJSON(i) }

func (i *Imt) UnmarshalJSON(data []byte) error {
	s, err := decodeJSON(data)
	if err != nil {
		return err
	}
	v, err := ParseImt(s)
	if err != nil {
		return err
	}
	*i = v
	return nil
}

// MarshalText lets Imt key JSON maps by its plain value.
func (i Imt) MarshalText() ([]byte, error) { return []byte(i.Value()), nil }

func (i *Imt) UnmarshalText(text []byte) error {
	v, err := ParseImt(string(text))
	if err != nil {
		return err
	}
	*i = v
	return nil
}
