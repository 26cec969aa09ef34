// Package hazardtest provides fixture models and test doubles for packages
// that consume hazard models.
package hazardtest

import (
	"archive/zip"
	"context"
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"hazard-service/internal/hazard"
	"hazard-service/internal/models"

	"github.com/stretchr/testify/require"
)

// Fixture node locations.
var (
	SanFrancisco = hazard.Location{Lon: -122.4, Lat: 37.8}
	Memphis      = hazard.Location{Lon: -90.0, Lat: 35.1}
)

// Levels are the intensity levels of every fixture IMT.
var Levels = map[models.Imt][]float64{
	models.PGA:   {0.005, 0.05, 0.5, 2.0},
	models.SA0P2: {0.005, 0.05, 0.5, 2.0, 4.0},
	models.SA1P0: {0.0025, 0.025, 0.25, 1.0},
}

// Imts is the fixture IMT order.
var Imts = []models.Imt{models.PGA, models.SA0P2, models.SA1P0}

// SiteTerms covers every site class; VS760 is the reference class.
var SiteTerms = map[models.Vs30]float64{
	models.VS2000: 0.6,
	models.VS1150: 0.8,
	models.VS760:  1.0,
	models.VS537:  1.2,
	models.VS360:  1.4,
	models.VS259:  1.6,
	models.VS180:  1.8,
}

type setFixture struct {
	file  string
	name  string
	typ   models.SourceType
	nodes []hazard.Location
	scale float64
}

// Two fault sets exercise per-type combination.
var sets = []setFixture{
	{"ceus-faults", "CEUS Faults", models.Fault, []hazard.Location{Memphis}, 0.5},
	{"new-madrid", "New Madrid Cluster", models.Cluster, []hazard.Location{Memphis}, 0.25},
	{"wus-faults", "WUS Faults", models.Fault, []hazard.Location{SanFrancisco, {Lon: -118.2, Lat: 34.0}}, 1.0},
	{"wus-grid", "WUS Grid", models.Grid, []hazard.Location{SanFrancisco}, 0.1},
}

// Rates returns the deterministic rate curve of a fixture node: decreasing
// with level index and scaled per source set.
func Rates(imt models.Imt, scale float64) []float64 {
	levels := Levels[imt]
	out := make([]float64, len(levels))
	for i := range levels {
		out[i] = scale * 1e-2 / float64((i+1)*(i+1)) / float64(int(imt)+1)
	}
	return out
}

func nodeRates(scale float64) map[models.Imt][]float64 {
	rates := make(map[models.Imt][]float64, len(Imts))
	for _, imt := range Imts {
		rates[imt] = Rates(imt, scale)
	}
	return rates
}

// Model builds the fixture model for id in memory.
func Model(t testing.TB, id models.ModelID) *hazard.Model {
	t.Helper()

	cfg, err := hazard.NewCalcConfig(Imts, Levels, SiteTerms)
	require.NoError(t, err)

	built := make([]hazard.SourceSet, 0, len(sets))
	for _, s := range sets {
		nodes := make([]hazard.Node, len(s.nodes))
		for i, loc := range s.nodes {
			nodes[i] = hazard.Node{Location: loc, Rates: nodeRates(s.scale)}
		}
		built = append(built, hazard.NewSourceSet(s.name, s.typ, nodes))
	}

	m, err := hazard.NewModel(id, "Fixture "+id.String(), cfg, built)
	require.NoError(t, err)
	return m
}

// Files returns the on-disk layout of the fixture model, keyed by slash path.
func Files(t testing.TB, id models.ModelID) map[string][]byte {
	t.Helper()

	files := make(map[string][]byte)
	cfg := map[string]interface{}{
		"name":      "Fixture " + id.String(),
		"imts":      Imts,
		"imls":      Levels,
		"siteTerms": SiteTerms,
	}
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	files[hazard.ConfigFile] = data

	for _, s := range sets {
		nodes := make([]map[string]interface{}, len(s.nodes))
		for i, loc := range s.nodes {
			nodes[i] = map[string]interface{}{
				"location": []float64{loc.Lon, loc.Lat},
				"curves":   nodeRates(s.scale),
			}
		}
		data, err := json.Marshal(map[string]interface{}{
			"name":  s.name,
			"type":  s.typ.Value(),
			"nodes": nodes,
		})
		require.NoError(t, err)
		files[path.Join(hazard.SourcesDir, s.file+".json")] = data
	}
	return files
}

// WriteDir writes the fixture model for id into dir.
func WriteDir(t testing.TB, dir string, id models.ModelID) {
	t.Helper()
	for name, data := range Files(t, id) {
		full := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, data, 0o644))
	}
}

// WriteZip writes an archive at archivePath holding one fixture model per id,
// each under a directory named after the id.
func WriteZip(t testing.TB, archivePath string, ids ...models.ModelID) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(archivePath), 0o755))

	f, err := os.Create(archivePath)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, id := range ids {
		for name, data := range Files(t, id) {
			w, err := zw.Create(path.Join(id.String(), name))
			require.NoError(t, err)
			_, err = w.Write(data)
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
}

// Loader is a counting in-memory loader. Load blocks for Delay and then
// returns Err if set, otherwise the fixture model.
type Loader struct {
	T     testing.TB
	Delay time.Duration
	Err   error

	calls atomic.Int64
	mu    sync.Mutex
	perID map[models.ModelID]int
}

func (l *Loader) Load(ctx context.Context, id models.ModelID) (*hazard.Model, error) {
	l.calls.Add(1)
	l.mu.Lock()
	if l.perID == nil {
		l.perID = make(map[models.ModelID]int)
	}
	l.perID[id]++
	l.mu.Unlock()

	if l.Delay > 0 {
		select {
		case <-time.After(l.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if l.Err != nil {
		return nil, l.Err
	}
	return Model(l.T, id), nil
}

// Calls is the total number of Load invocations.
func (l *Loader) Calls() int { return int(l.calls.Load()) }

// CallsFor is the number of Load invocations for id.
func (l *Loader) CallsFor(id models.ModelID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.perID[id]
}
