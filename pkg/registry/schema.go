// pkg/registry/schema.go
package registry

import _ "embed"

//go:embed registry.schema.json
var schemaJSON string

// ModelRegistry lists the hazard models a deployment may serve.
type ModelRegistry struct {
	Version     string       `json:"version"`
	LastUpdated string       `json:"lastUpdated"`
	Models      []ModelEntry `json:"models"`
}

// ModelEntry describes one model dataset and where to find it.
type ModelEntry struct {
	ID          string   `json:"id"`
	Region      string   `json:"region"`
	Edition     string   `json:"edition"`
	DisplayName string   `json:"displayName"`
	Locator     string   `json:"locator"`
	Preload     bool     `json:"preload,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}
