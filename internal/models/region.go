package models

// Region identifies the geographic extent of a hazard model.
type Region int

const (
	COUS Region = iota
	WUS
	CEUS
	AK
	HI
)

var regionCodec = newCodec[Region]("region",
	codecEntry{"COUS", "Conterminous U.S."},
	codecEntry{"WUS", "Western U.S."},
	codecEntry{"CEUS", "Central & Eastern U.S."},
	codecEntry{"AK", "Alaska"},
	codecEntry{"HI", "Hawaii"},
)

// Bounds is a lon/lat rectangle, inclusive on all edges.
type Bounds struct {
	MinLatitude  float64 `json:"minlatitude"`
	MaxLatitude  float64 `json:"maxlatitude"`
	MinLongitude float64 `json:"minlongitude"`
	MaxLongitude float64 `json:"maxlongitude"`
}

func (b Bounds) Contains(longitude, latitude float64) bool {
	return latitude >= b.MinLatitude && latitude <= b.MaxLatitude &&
		longitude >= b.MinLongitude && longitude <= b.MaxLongitude
}

type regionExtent struct {
	bounds Bounds
	// client map limits, narrower than the model extent where WUS and CEUS overlap
	uiMinLongitude float64
	uiMaxLongitude float64
}

var regionExtents = []regionExtent{
	COUS: {Bounds{24.6, 50.0, -125.0, -65.0}, -125.0, -65.0},
	WUS:  {Bounds{24.6, 50.0, -125.0, -100.0}, -125.0, -115.0},
	CEUS: {Bounds{24.6, 50.0, -115.0, -65.0}, -100.0, -65.0},
	AK:   {Bounds{48.0, 72.0, -200.0, -125.0}, -200.0, -125.0},
	HI:   {Bounds{18.0, 23.0, -161.0, -154.0}, -161.0, -154.0},
}

func ParseRegion(s string) (Region, error) { return regionCodec.parse(s) }

func Regions() []Region { return regionCodec.values() }

func (r Region) Bounds() Bounds {
	if !regionCodec.valid(r) {
		return Bounds{}
	}
	return regionExtents[r].bounds
}

// Resolve narrows a COUS request to WUS or CEUS when the longitude falls
// outside the overlap zone of the two sub-models. Other regions are returned
// unchanged.
func (r Region) Resolve(longitude float64) Region {
	if r != COUS {
		return r
	}
	switch {
	case longitude <= regionExtents[WUS].uiMaxLongitude:
		return WUS
	case longitude >= regionExtents[CEUS].uiMinLongitude:
		return CEUS
	default:
		return COUS
	}
}

func (r Region) Value() string     { return regionCodec.value(r) }
func (r Region) Display() string   { return regionCodec.display(r) }
func (r Region) DisplayOrder() int { return int(r) }
func (r Region) String() string    { return r.Value() }

func (r Region) MarshalJSON() ([]byte, error) { return encodeJSON(r) }

func (r *Region) UnmarshalJSON(data []byte) error {
	s, err := decodeJSON(data)
	if err != nil {
		return err
	}
	v, err := ParseRegion(s)
	if err != nil {
		return err
	}
	*r = v
	return nil
}
