// internal/services/hazard-curve/request.go
package hazardcurve

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	apperrors "hazard-service/internal/common/errors"
	"hazard-service/internal/models"
)

// Request parameter names, in path order.
const (
	ParamEdition   = "edition"
	ParamRegion    = "region"
	ParamLongitude = "longitude"
	ParamLatitude  = "latitude"
	ParamImt       = "imt"
	ParamVs30      = "vs30"
)

// MinPathSegments is the number of positional segments of the path form.
const MinPathSegments = 6

var (
	errMissing      = errors.New("value is required")
	errOutOfRange   = errors.New("value is out of range")
	errOutsideModel = errors.New("location is outside the region")
)

// RawParams are the unparsed request fields, whichever form they came in.
type RawParams struct {
	Edition   string
	Region    string
	Longitude string
	Latitude  string
	Imt       string
	Vs30      string
}

// ParamsFromQuery reads the query form. A repeated key uses its first value.
func ParamsFromQuery(q url.Values) RawParams {
	return RawParams{
		Edition:   q.Get(ParamEdition),
		Region:    q.Get(ParamRegion),
		Longitude: q.Get(ParamLongitude),
		Latitude:  q.Get(ParamLatitude),
		Imt:       q.Get(ParamImt),
		Vs30:      q.Get(ParamVs30),
	}
}

// ParamsFromPath reads the positional form edition/region/lon/lat/imt/vs30.
// It reports false when there are fewer than MinPathSegments segments;
// segments past the sixth are ignored.
func ParamsFromPath(segments []string) (RawParams, bool) {
	if len(segments) < MinPathSegments {
		return RawParams{}, false
	}
	return RawParams{
		Edition:   segments[0],
		Region:    segments[1],
		Longitude: segments[2],
		Latitude:  segments[3],
		Imt:       segments[4],
		Vs30:      segments[5],
	}, true
}

// SplitPath splits a slash-delimited path, dropping empty segments.
func SplitPath(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Options adjust request normalization.
type Options struct {
	// RegionOverride narrows COUS requests to WUS or CEUS by longitude.
	RegionOverride bool
	// CheckBounds rejects locations outside the resolved region.
	CheckBounds bool
}

// NewRequestDescriptor validates raw and builds a descriptor. Every failure is
// a REQUEST_FORMAT_ERROR naming the offending field.
func NewRequestDescriptor(raw RawParams, opts Options) (RequestDescriptor, error) {
	var d RequestDescriptor
	var err error

	if d.Edition, err = parseField(ParamEdition, raw.Edition, models.ParseEdition); err != nil {
		return RequestDescriptor{}, err
	}
	if d.Region, err = parseField(ParamRegion, raw.Region, models.ParseRegion); err != nil {
		return RequestDescriptor{}, err
	}
	if d.Longitude, err = parseCoordinate(ParamLongitude, raw.Longitude, 360); err != nil {
		return RequestDescriptor{}, err
	}
	if d.Latitude, err = parseCoordinate(ParamLatitude, raw.Latitude, 90); err != nil {
		return RequestDescriptor{}, err
	}
	if d.Imts, err = parseField(ParamImt, raw.Imt, models.ParseImts); err != nil {
		return RequestDescriptor{}, err
	}
	if len(d.Imts) == 0 {
		return RequestDescriptor{}, apperrors.NewRequestFormatError(ParamImt, errMissing)
	}
	if d.Vs30, err = parseField(ParamVs30, raw.Vs30, models.ParseVs30); err != nil {
		return RequestDescriptor{}, err
	}

	if opts.RegionOverride {
		d.Region = d.Region.Resolve(d.Longitude)
	}
	if opts.CheckBounds && !d.Region.Bounds().Contains(d.Longitude, d.Latitude) {
		return RequestDescriptor{}, apperrors.NewRequestFormatError(ParamLongitude,
			fmt.Errorf("%w: (%g, %g) not in %s", errOutsideModel, d.Longitude, d.Latitude, d.Region))
	}
	return d, nil
}

func parseField[T any](field, s string, parse func(string) (T, error)) (T, error) {
	if strings.TrimSpace(s) == "" {
		var zero T
		return zero, apperrors.NewRequestFormatError(field, errMissing)
	}
	v, err := parse(s)
	if err != nil {
		var zero T
		return zero, apperrors.NewRequestFormatError(field, err)
	}
	return v, nil
}

func parseCoordinate(field, s string, limit float64) (float64, error) {
	return parseField(field, s, func(s string) (float64, error) {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", s)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > limit {
			return 0, fmt.Errorf("%w: %g", errOutOfRange, v)
		}
		return v, nil
	})
}
