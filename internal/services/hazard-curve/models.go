// internal/services/hazard-curve/models.go
package hazardcurve

import (
	"hazard-service/internal/hazard"
	"hazard-service/internal/models"
)

const (
	StatusSuccess  = "success"
	StatusUsage    = "usage"
	TotalComponent = "Total"
	XLabel         = "Ground Motion (g)"
	YLabel         = "Annual Frequency of Exceedance"
)

// RequestDescriptor is a validated hazard-curve request.
type RequestDescriptor struct {
	Edition   models.Edition
	Region    models.Region
	Longitude float64
	Latitude  float64
	Imts      []models.Imt
	Vs30      models.Vs30
}

func (d RequestDescriptor) ModelID() models.ModelID {
	return models.NewModelID(d.Region, d.Edition)
}

func (d RequestDescriptor) Site() hazard.Site {
	return hazard.Site{
		Location: hazard.Location{Lon: d.Longitude, Lat: d.Latitude},
		Vs30:     d.Vs30,
	}
}

type Result struct {
	Status   string        `json:"status"`
	Date     string        `json:"date"`
	URL      string        `json:"url"`
	Server   ServerInfo    `json:"server"`
	Response []ImtResponse `json:"response"`
}

type ServerInfo struct {
	Threads int    `json:"threads"`
	Timing  Timing `json:"timing"`
}

type Timing struct {
	Request string `json:"request"`
	Calc    string `json:"calc"`
}

type ImtResponse struct {
	Metadata Metadata `json:"metadata"`
	Data     []Curve  `json:"data"`
}

type Metadata struct {
	Edition   models.Edition `json:"edition"`
	Region    models.Region  `json:"region"`
	Longitude float64        `json:"longitude"`
	Latitude  float64        `json:"latitude"`
	Imt       models.Imt     `json:"imt"`
	Vs30      models.Vs30    `json:"vs30"`
	XLabel    string         `json:"xlabel"`
	YLabel    string         `json:"ylabel"`
	XValues   []float64      `json:"xvals"`
}

type Curve struct {
	Component string    `json:"component"`
	YValues   []float64 `json:"yvals"`
}
