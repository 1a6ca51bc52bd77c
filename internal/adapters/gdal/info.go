package gdal

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/jobrunner/stacman/internal/domain"
	"github.com/jobrunner/stacman/internal/ports/output"
)

// epsgPattern matches authority identifiers in WKT2. The last match is the
// identifier of the CRS itself.
var epsgPattern = regexp.MustCompile(`ID\["EPSG",\s*(\d+)\]`)

// rasterDoc is the subset of `gdalinfo -json` output that is used.
type rasterDoc struct {
	DriverShortName  string    `json:"driverShortName"`
	Files            []string  `json:"files"`
	Size             []int     `json:"size"`
	GeoTransform     []float64 `json:"geoTransform"`
	CoordinateSystem struct {
		WKT string `json:"wkt"`
	} `json:"coordinateSystem"`
	CornerCoordinates map[string][]float64 `json:"cornerCoordinates"`
	STAC              map[string]any       `json:"stac"`
}

// ParseRasterInfo converts `gdalinfo -json` output.
func ParseRasterInfo(data []byte) (*output.RasterInfo, error) {
	var doc rasterDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding gdalinfo output: %w", err)
	}

	bounds, err := cornerBounds(doc.CornerCoordinates)
	if err != nil {
		return nil, err
	}

	info := &output.RasterInfo{
		Driver: doc.DriverShortName,
		Bounds: bounds,
	}
	for _, f := range doc.Files {
		info.Files = append(info.Files, FromVSIPath(f))
	}

	proj := &output.ProjectionInfo{
		WKT2: doc.CoordinateSystem.WKT,
		BBox: &bounds,
	}
	if m := epsgPattern.FindAllStringSubmatch(doc.CoordinateSystem.WKT, -1); len(m) > 0 {
		proj.EPSG, _ = strconv.Atoi(m[len(m)-1][1])
	}
	if v, ok := doc.STAC["proj:epsg"].(float64); ok && proj.EPSG == 0 {
		proj.EPSG = int(v)
	}
	if len(doc.Size) == 2 {
		proj.Shape = []int{doc.Size[1], doc.Size[0]}
	}
	if gt := doc.GeoTransform; len(gt) == 6 {
		proj.Transform = []float64{gt[1], gt[2], gt[0], gt[4], gt[5], gt[3]}
	}
	if proj.EPSG != 0 || proj.WKT2 != "" {
		info.Projection = proj
	}
	return info, nil
}

// cornerBounds derives the native bounding box from the corner
// coordinates, which also covers rotated rasters.
func cornerBounds(corners map[string][]float64) (domain.BBox, error) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	n := 0
	for _, name := range []string{"upperLeft", "lowerLeft", "lowerRight", "upperRight"} {
		c, ok := corners[name]
		if !ok || len(c) < 2 {
			continue
		}
		minX, maxX = math.Min(minX, c[0]), math.Max(maxX, c[0])
		minY, maxY = math.Min(minY, c[1]), math.Max(maxY, c[1])
		n++
	}
	if n == 0 {
		return domain.BBox{}, fmt.Errorf("gdalinfo reported no corner coordinates: %w", domain.ErrInvalidBBox)
	}
	return domain.NewBBox(minX, minY, maxX, maxY), nil
}

// groupDoc is the subset of `gdalmdiminfo -detailed` output that is used.
type groupDoc struct {
	Type       string              `json:"type"`
	Attributes map[string]any      `json:"attributes"`
	Arrays     map[string]arrayDoc `json:"arrays"`
	Groups     map[string]groupDoc `json:"groups"`
}

type arrayDoc struct {
	Dimensions []string `json:"dimensions"`
	Values     []any    `json:"values"`
}

// ParseArrayInfo converts `gdalmdiminfo -detailed` output. Ranges are
// collected for one-dimensional numeric arrays of the root group and its
// subgroups; the first occurrence of a name wins.
func ParseArrayInfo(data []byte) (*output.ArrayInfo, error) {
	var root groupDoc
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decoding gdalmdiminfo output: %w", err)
	}

	info := &output.ArrayInfo{
		Ranges:     make(map[string]output.ValueRange),
		Attributes: make(map[string]any, len(root.Attributes)),
	}
	for k, v := range root.Attributes {
		info.Attributes[k] = v
	}
	collectRanges(root, info.Ranges)
	return info, nil
}

func collectRanges(g groupDoc, ranges map[string]output.ValueRange) {
	for _, name := range sortedNames(g.Arrays) {
		if _, seen := ranges[name]; seen {
			continue
		}
		a := g.Arrays[name]
		if len(a.Dimensions) != 1 {
			continue
		}
		if r, ok := valueRange(a.Values); ok {
			ranges[name] = r
		}
	}
	for _, name := range sortedNames(g.Groups) {
		collectRanges(g.Groups[name], ranges)
	}
}

func valueRange(values []any) (output.ValueRange, bool) {
	r := output.ValueRange{Min: math.Inf(1), Max: math.Inf(-1)}
	n := 0
	for _, v := range values {
		f, ok := v.(float64)
		if !ok || math.IsNaN(f) {
			continue
		}
		r.Min = math.Min(r.Min, f)
		r.Max = math.Max(r.Max, f)
		n++
	}
	return r, n > 0
}
