package models

import (
	"fmt"
	"strconv"
	"strings"
)

// ModelID identifies one installed hazard model dataset. It is comparable and
// used directly as a map key.
type ModelID struct {
	Region  Region
	Edition Edition
}

func NewModelID(region Region, edition Edition) ModelID {
	return ModelID{Region: region, Edition: edition}
}

// ParseModelID parses the canonical REGION_YEAR form, e.g. "COUS_2014".
func ParseModelID(s string) (ModelID, error) {
	regionStr, yearStr, ok := strings.Cut(strings.TrimSpace(s), "_")
	if !ok {
		return ModelID{}, fmt.Errorf("%w: model id %q", ErrUnknownValue, s)
	}
	region, err := ParseRegion(regionStr)
	if err != nil {
		return ModelID{}, err
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return ModelID{}, fmt.Errorf("%w: model id %q", ErrUnknownValue, s)
	}
	edition, err := EditionForYear(year)
	if err != nil {
		return ModelID{}, err
	}
	return ModelID{Region: region, Edition: edition}, nil
}

func (id ModelID) String() string {
	return fmt.Sprintf("%s_%d", id.Region.Value(), id.Edition.Year())
}

func (id ModelID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *ModelID) UnmarshalText(text []byte) error {
	parsed, err := ParseModelID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
