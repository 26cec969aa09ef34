package hazard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"hazard-service/internal/models"
)

// On-disk layout of a model directory:
//
//	config.json        {"name", "imts", "imls": {IMT: [...]}, "siteTerms": {"760": 1.0}}
//	sources/<set>.json {"name", "type", "nodes": [{"location": [lon, lat], "curves": {IMT: [...]}}]}
const (
	ConfigFile = "config.json"
	SourcesDir = "sources"
)

var ErrMissingConfig = errors.New("model config not found")

type configDoc struct {
	Name      string                   `json:"name"`
	Imts      []models.Imt             `json:"imts"`
	Imls      map[models.Imt][]float64 `json:"imls"`
	SiteTerms map[models.Vs30]float64  `json:"siteTerms"`
}

type sourceSetDoc struct {
	Name  string            `json:"name"`
	Type  models.SourceType `json:"type"`
	Nodes []nodeDoc         `json:"nodes"`
}

type nodeDoc struct {
	Location [2]float64               `json:"location"`
	Curves   map[models.Imt][]float64 `json:"curves"`
}

// decodeModel reads a model from the root of fsys.
func decodeModel(ctx context.Context, fsys fs.FS, id models.ModelID, fallbackName string) (*Model, error) {
	var cfgDoc configDoc
	if err := readJSON(fsys, ConfigFile, &cfgDoc); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingConfig, id)
		}
		return nil, err
	}

	cfg, err := NewCalcConfig(cfgDoc.Imts, cfgDoc.Imls, cfgDoc.SiteTerms)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ConfigFile, err)
	}

	files, err := fs.Glob(fsys, path.Join(SourcesDir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list source sets: %w", err)
	}

	sets := make([]SourceSet, 0, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var doc sourceSetDoc
		if err := readJSON(fsys, file, &doc); err != nil {
			return nil, err
		}
		nodes := make([]Node, len(doc.Nodes))
		for i, n := range doc.Nodes {
			nodes[i] = Node{
				Location: Location{Lon: n.Location[0], Lat: n.Location[1]},
				Rates:    n.Curves,
			}
		}
		name := doc.Name
		if name == "" {
			name = path.Base(file)
		}
		sets = append(sets, NewSourceSet(name, doc.Type, nodes))
	}

	name := cfgDoc.Name
	if name == "" {
		name = fallbackName
	}
	return NewModel(id, name, cfg, sets)
}

func readJSON(fsys fs.FS, name string, v interface{}) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}
