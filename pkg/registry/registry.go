// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hazard-service/internal/models"

	"github.com/xeipuuv/gojsonschema"
)

var (
	ErrInvalidRegistry = errors.New("invalid model registry")
	ErrEntryNotFound   = errors.New("registry entry not found")
	ErrDuplicateEntry  = errors.New("duplicate registry entry")
)

// LoadRegistry reads and validates the registry at path.
func LoadRegistry(path string) (*ModelRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse validates data against the registry schema, then decodes it and checks
// that every entry is consistent.
func Parse(data []byte) (*ModelRegistry, error) {
	if err := validateSchema(data); err != nil {
		return nil, err
	}

	var reg ModelRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRegistry, err)
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

func validateSchema(data []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schemaJSON),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRegistry, err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("%w: %s", ErrInvalidRegistry, strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks the rules the schema cannot express: ids are unique and
// agree with the region and edition of their entry.
func (r *ModelRegistry) Validate() error {
	seen := make(map[string]bool, len(r.Models))
	for _, m := range r.Models {
		if seen[m.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateEntry, m.ID)
		}
		seen[m.ID] = true

		id, err := m.ModelID()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRegistry, err)
		}
		if id.Region.Value() != m.Region || id.Edition.Value() != m.Edition {
			return fmt.Errorf("%w: id %s does not match region %s edition %s",
				ErrInvalidRegistry, m.ID, m.Region, m.Edition)
		}
	}
	return nil
}

// ModelID parses the entry id.
func (e ModelEntry) ModelID() (models.ModelID, error) {
	return models.ParseModelID(e.ID)
}

// Find returns the entry with the given id.
func (r *ModelRegistry) Find(id string) (*ModelEntry, error) {
	for i := range r.Models {
		if r.Models[i].ID == id {
			return &r.Models[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
}

// Add appends an entry and revalidates the registry.
func (r *ModelRegistry) Add(entry ModelEntry) error {
	if _, err := r.Find(entry.ID); err == nil {
		return fmt.Errorf("%w: %s", ErrDuplicateEntry, entry.ID)
	}
	r.Models = append(r.Models, entry)
	if err := r.Validate(); err != nil {
		r.Models = r.Models[:len(r.Models)-1]
		return err
	}
	return nil
}

// PreloadIDs returns the ids of entries flagged for eager loading.
func (r *ModelRegistry) PreloadIDs() []models.ModelID {
	var out []models.ModelID
	for _, m := range r.Models {
		if !m.Preload {
			continue
		}
		if id, err := m.ModelID(); err == nil {
			out = append(out, id)
		}
	}
	return out
}

// Save writes the registry as indented JSON, creating parent directories.
func Save(reg *ModelRegistry, path string) error {
	if reg.Models == nil {
		reg.Models = []ModelEntry{}
	}
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := validateSchema(data); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}
