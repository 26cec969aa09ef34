// Package hazard holds the in-memory hazard model, the computation result and
// the engine that turns one into the other.
package hazard

import (
	"errors"
	"fmt"

	"hazard-service/internal/models"
)

var (
	ErrImtNotSupported  = errors.New("imt not supported by model")
	ErrVs30NotSupported = errors.New("vs30 not supported by model")
	ErrInvalidModel     = errors.New("invalid model")
)

// Location is a geographic point in decimal degrees.
type Location struct {
	Lon float64
	Lat float64
}

// Site is the point a hazard curve is computed for.
type Site struct {
	Location Location
	Vs30     models.Vs30
}

// CalcConfig carries the intensity levels per IMT and the site amplification
// terms of a model. It is a value type; WithImts returns a narrowed copy and
// never modifies the receiver.
type CalcConfig struct {
	imts      []models.Imt
	imls      map[models.Imt][]float64
	siteTerms map[models.Vs30]float64
}

func NewCalcConfig(imts []models.Imt, imls map[models.Imt][]float64, siteTerms map[models.Vs30]float64) (CalcConfig, error) {
	if len(imts) == 0 {
		return CalcConfig{}, fmt.Errorf("%w: no imts", ErrInvalidModel)
	}
	if len(siteTerms) == 0 {
		return CalcConfig{}, fmt.Errorf("%w: no site terms", ErrInvalidModel)
	}

	cfg := CalcConfig{
		imts:      make([]models.Imt, 0, len(imts)),
		imls:      make(map[models.Imt][]float64, len(imts)),
		siteTerms: make(map[models.Vs30]float64, len(siteTerms)),
	}
	for _, imt := range imts {
		levels := imls[imt]
		if len(levels) == 0 {
			return CalcConfig{}, fmt.Errorf("%w: no intensity levels for %s", ErrInvalidModel, imt)
		}
		if _, dup := cfg.imls[imt]; dup {
			return CalcConfig{}, fmt.Errorf("%w: duplicate imt %s", ErrInvalidModel, imt)
		}
		cfg.imts = append(cfg.imts, imt)
		cfg.imls[imt] = append([]float64(nil), levels...)
	}
	for vs30, term := range siteTerms {
		cfg.siteTerms[vs30] = term
	}
	return cfg, nil
}

func (c CalcConfig) Imts() []models.Imt {
	return append([]models.Imt(nil), c.imts...)
}

// Imls returns a copy of the intensity levels (the x values) for imt.
func (c CalcConfig) Imls(imt models.Imt) []float64 {
	return append([]float64(nil), c.imls[imt]...)
}

func (c CalcConfig) Supports(imt models.Imt) bool {
	_, ok := c.imls[imt]
	return ok
}

func (c CalcConfig) SiteTerm(vs30 models.Vs30) (float64, bool) {
	term, ok := c.siteTerms[vs30]
	return term, ok
}

// Vs30s lists the supported site classes in declaration order.
func (c CalcConfig) Vs30s() []models.Vs30 {
	var out []models.Vs30
	for _, v := range models.Vs30s() {
		if _, ok := c.siteTerms[v]; ok {
			out = append(out, v)
		}
	}
	return out
}

// WithImts narrows the configuration to imts, in the given order.
func (c CalcConfig) WithImts(imts []models.Imt) (CalcConfig, error) {
	narrowed := make(map[models.Imt][]float64, len(imts))
	for _, imt := range imts {
		levels, ok := c.imls[imt]
		if !ok {
			return CalcConfig{}, fmt.Errorf("%w: %s", ErrImtNotSupported, imt)
		}
		narrowed[imt] = levels
	}
	return NewCalcConfig(imts, narrowed, c.siteTerms)
}

// Node is one grid point of a source set with its rate curves per IMT.
type Node struct {
	Location Location
	Rates    map[models.Imt][]float64
}

// SourceSet is a named group of sources of one type.
type SourceSet struct {
	name  string
	typ   models.SourceType
	nodes []Node
}

func NewSourceSet(name string, typ models.SourceType, nodes []Node) SourceSet {
	copied := make([]Node, len(nodes))
	for i, n := range nodes {
		rates := make(map[models.Imt][]float64, len(n.Rates))
		for imt, r := range n.Rates {
			rates[imt] = append([]float64(nil), r...)
		}
		copied[i] = Node{Location: n.Location, Rates: rates}
	}
	return SourceSet{name: name, typ: typ, nodes: copied}
}

func (s SourceSet) Name() string            { return s.name }
func (s SourceSet) Type() models.SourceType { return s.typ }
func (s SourceSet) Len() int                { return len(s.nodes) }

// Model is a loaded hazard model. It has no setters and is safe to share
// between goroutines once built.
type Model struct {
	id         models.ModelID
	name       string
	config     CalcConfig
	sourceSets []SourceSet
}

// NewModel validates that every node carries a rate curve matching the
// intensity levels of each configured IMT.
func NewModel(id models.ModelID, name string, cfg CalcConfig, sourceSets []SourceSet) (*Model, error) {
	if len(sourceSets) == 0 {
		return nil, fmt.Errorf("%w: %s has no source sets", ErrInvalidModel, id)
	}
	for _, set := range sourceSets {
		for i, node := range set.nodes {
			for _, imt := range cfg.imts {
				if got, want := len(node.Rates[imt]), len(cfg.imls[imt]); got != want {
					return nil, fmt.Errorf("%w: %s source set %q node %d has %d %s rates, want %d",
						ErrInvalidModel, id, set.name, i, got, imt, want)
				}
			}
		}
	}
	return &Model{
		id:         id,
		name:       name,
		config:     cfg,
		sourceSets: append([]SourceSet(nil), sourceSets...),
	}, nil
}

func (m *Model) ID() models.ModelID { return m.id }
func (m *Model) Name() string       { return m.name }

// Config returns the model's default calculation configuration.
func (m *Model) Config() CalcConfig { return m.config }

func (m *Model) SourceSets() []SourceSet {
	return append([]SourceSet(nil), m.sourceSets...)
}
