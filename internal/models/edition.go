package models

import "fmt"

// Edition identifies a released version of the hazard model.
type Edition int

const (
	E2008 Edition = iota
	E2014
	E2018
)

var editionCodec = newCodec[Edition]("edition",
	codecEntry{"E2008", "USGS NSHM 2008"},
	codecEntry{"E2014", "USGS NSHM 2014"},
	codecEntry{"E2018", "USGS NSHM 2018"},
)

var editionYears = []int{2008, 2014, 2018}

func ParseEdition(s string) (Edition, error) { return editionCodec.parse(s) }

// EditionForYear maps a release year back to its edition.
func EditionForYear(year int) (Edition, error) {
	for i, y := range editionYears {
		if y == year {
			return Edition(i), nil
		}
	}
	return 0, fmt.Errorf("%w: edition year %d", ErrUnknownValue, year)
}

func Editions() []Edition { return editionCodec.values() }

func (e Edition) Year() int {
	if !editionCodec.valid(e) {
		return 0
	}
	return editionYears[e]
}

func (e Edition) Value() string     { return editionCodec.value(e) }
func (e Edition) Display() string   { return editionCodec.display(e) }
func (e Edition) DisplayOrder() int { return int(e) }
func (e Edition) String() string    { return e.Value() }

func (e Edition) MarshalJSON() ([]byte, error) { return encodeJSON(e) }

func (e *Edition) UnmarshalJSON(data []byte) error {
	s, err := decodeJSON(data)
	if err != nil {
		return err
	}
	v, err := ParseEdition(s)
	if err != nil {
		return err
	}
	*e = v
	return nil
}
