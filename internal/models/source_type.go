package models

// SourceType is a category of seismic source. Declaration order is the order
// component curves appear in a response.
type SourceType int

const (
	Fault SourceType = iota
	Interface
	Slab
	Cluster
	Grid
	Area
	System
)

var sourceTypeCodec = newCodec[SourceType]("source type",
	codecEntry{"FAULT", "Fault"},
	codecEntry{"INTERFACE", "Interface"},
	codecEntry{"SLAB", "Slab"},
	codecEntry{"CLUSTER", "Cluster"},
	codecEntry{"GRID", "Grid"},
	codecEntry{"AREA", "Area"},
	codecEntry{"SYSTEM", "System"},
)

func ParseSourceType(s string) (SourceType, error) { return sourceTypeCodec.parse(s) }

func SourceTypes() []SourceType { return sourceTypeCodec.values() }

func (t SourceType) Value() string     { return sourceTypeCodec.value(t) }
func (t SourceType) Display() string   { return sourceTypeCodec.display(t) }
func (t SourceType) DisplayOrder() int { return int(t) }

// String is the canonical label used for component curves.
func (t SourceType) String() string { return t.Display() }

func (t SourceType) MarshalJSON() ([]byte, error) { return encodeJSON(t) }

func (t *SourceType) UnmarshalJSON(data []byte) error {
	s, err := decodeJSON(data)
	if err != nil {
		return err
	}
	v, err := ParseSourceType(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}
