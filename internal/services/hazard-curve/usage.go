// internal/services/hazard-curve/usage.go
package hazardcurve

import (
	"encoding/json"
	"fmt"

	"hazard-service/internal/models"
)

const usageDescription = "Compute hazard curves at a site for an installed NSHM edition and region"

// Usage is the help document returned for an empty request.
type Usage struct {
	Status      string          `json:"status"`
	Description string          `json:"description"`
	Syntax      []string        `json:"syntax"`
	Parameters  UsageParameters `json:"parameters"`
	Models      []UsageModel    `json:"models"`
}

type UsageParameters struct {
	Edition   Parameter `json:"edition"`
	Region    Parameter `json:"region"`
	Longitude Parameter `json:"longitude"`
	Latitude  Parameter `json:"latitude"`
	Imt       Parameter `json:"imt"`
	Vs30      Parameter `json:"vs30"`
}

type Parameter struct {
	Label  string             `json:"label"`
	Type   string             `json:"type"`
	Values []models.Encodable `json:"values,omitempty"`

	// Bounds holds per-region limits for coordinate parameters.
	Bounds map[string]models.Bounds `json:"bounds,omitempty"`
}

type UsageModel struct {
	ID      string         `json:"id"`
	Display string         `json:"display"`
	Region  models.Region  `json:"region"`
	Edition models.Edition `json:"edition"`
}

// BuildUsage renders the usage document for the installed models. The result
// is computed once at startup and served verbatim.
func BuildUsage(basePath string, installed []models.ModelID, displayName func(models.ModelID) string) ([]byte, error) {
	bounds := make(map[string]models.Bounds)
	for _, r := range models.Regions() {
		bounds[r.Value()] = r.Bounds()
	}

	doc := Usage{
		Status:      StatusUsage,
		Description: usageDescription,
		Syntax: []string{
			fmt.Sprintf("%s?%s=&%s=&%s=&%s=&%s=&%s=", basePath,
				ParamEdition, ParamRegion, ParamLongitude, ParamLatitude, ParamImt, ParamVs30),
			fmt.Sprintf("%s/{%s}/{%s}/{%s}/{%s}/{%s}/{%s}", basePath,
				ParamEdition, ParamRegion, ParamLongitude, ParamLatitude, ParamImt, ParamVs30),
		},
		Parameters: UsageParameters{
			Edition:   Parameter{Label: "Model edition", Type: "string", Values: encodables(models.Editions())},
			Region:    Parameter{Label: "Model region", Type: "string", Values: encodables(models.Regions())},
			Longitude: Parameter{Label: "Longitude (in decimal degrees)", Type: "number", Bounds: bounds},
			Latitude:  Parameter{Label: "Latitude (in decimal degrees)", Type: "number", Bounds: bounds},
			Imt:       Parameter{Label: "Intensity measure type, or a comma-separated list", Type: "string", Values: encodables(models.Imts())},
			Vs30:      Parameter{Label: "Site soil (Vs30)", Type: "string", Values: encodables(models.Vs30s())},
		},
		Models: make([]UsageModel, 0, len(installed)),
	}

	for _, id := range installed {
		display := id.String()
		if displayName != nil {
			if name := displayName(id); name != "" {
				display = name
			}
		}
		doc.Models = append(doc.Models, UsageModel{
			ID:      id.String(),
			Display: display,
			Region:  id.Region,
			Edition: id.Edition,
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode usage: %w", err)
	}
	return data, nil
}

func encodables[E models.Encodable](values []E) []models.Encodable {
	out := make([]models.Encodable, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
