// Package vecio adapts the pipeline's vector and raster collaborators
// to files on disk: shapefile readers for seed points, waterbody
// polygons and coastal classification polylines, shapefile and GeoJSON
// writers for the output layers, and a flat-binary raster format for
// the analysis grids.
package vecio

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/coastline-cli/internal/mask"
	"github.com/sells-group/coastline-cli/internal/points"
)

// Extent is a bounding box used to restrict reads to one tile. The
// zero value matches everything.
type Extent struct {
	MinX, MinY, MaxX, MaxY float64
}

func (e Extent) isZero() bool { return e == Extent{} }

func (e Extent) intersects(b shp.Box) bool {
	if e.isZero() {
		return true
	}
	return b.MinX <= e.MaxX && b.MaxX >= e.MinX && b.MinY <= e.MaxY && b.MaxY >= e.MinY
}

// waterbodyTypes is the feature-type vocabulary of the surface-water
// dataset that counts as a waterbody exclusion. Lakes additionally
// require perenniality.
var waterbodyTypes = map[string]bool{
	"Aquaculture Area": true,
	"Estuary":          true,
	"Watercourse Area": true,
	"Salt Evaporator":  true,
	"Settling Pond":    true,
}

// ReadSeeds loads ocean seed points from a point shapefile, keeping
// those inside the extent.
func ReadSeeds(path string, ext Extent) ([]mask.Seed, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "vecio: open seeds %s", path)
	}
	defer func() { _ = reader.Close() }()

	var seeds []mask.Seed
	for reader.Next() {
		_, shape := reader.Shape()
		p, ok := shape.(*shp.Point)
		if !ok || !ext.intersects(shape.BBox()) {
			continue
		}
		seeds = append(seeds, mask.Seed{X: p.X, Y: p.Y})
	}
	return seeds, nil
}

// ReadWaterbodies loads exclusion polygons from the primary
// surface-water dataset. Perennial lakes and the fixed vocabulary of
// other waterbody feature types are kept; everything else is skipped.
func ReadWaterbodies(path string, ext Extent) ([]mask.WaterbodyFeature, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "vecio: open waterbodies %s", path)
	}
	defer func() { _ = reader.Close() }()

	typeIdx := fieldIndex(reader, "FEATURETYPE")
	perenIdx := fieldIndex(reader, "PERENNIALITY")
	if typeIdx < 0 {
		return nil, eris.Errorf("vecio: waterbodies %s missing FEATURETYPE field", path)
	}

	var feats []mask.WaterbodyFeature
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok || !ext.intersects(shape.BBox()) {
			continue
		}

		ftype := attribute(reader, typeIdx)
		switch {
		case waterbodyTypes[ftype]:
		case ftype == "Lake" && perenIdx >= 0 && attribute(reader, perenIdx) == "Perennial":
		default:
			skipped++
			continue
		}

		for _, g := range polygonParts(poly) {
			feats = append(feats, mask.WaterbodyFeature{Geometry: g, Kind: mask.WaterbodyBase})
		}
	}
	if skipped > 0 {
		zap.L().Debug("vecio: skipped non-waterbody features",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	return feats, nil
}

// ReadWaterbodyModifications loads the manual waterbody edits: polygons
// with a "type" attribute of add or remove.
func ReadWaterbodyModifications(path string, ext Extent) ([]mask.WaterbodyFeature, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "vecio: open waterbody modifications %s", path)
	}
	defer func() { _ = reader.Close() }()

	typeIdx := fieldIndex(reader, "type")
	if typeIdx < 0 {
		return nil, eris.Errorf("vecio: waterbody modifications %s missing type field", path)
	}

	var feats []mask.WaterbodyFeature
	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok || !ext.intersects(shape.BBox()) {
			continue
		}

		var kind mask.WaterbodyKind
		switch attribute(reader, typeIdx) {
		case "add":
			kind = mask.WaterbodyAdd
		case "remove":
			kind = mask.WaterbodyRemove
		default:
			continue
		}

		for _, g := range polygonParts(poly) {
			feats = append(feats, mask.WaterbodyFeature{Geometry: g, Kind: kind})
		}
	}
	return feats, nil
}

// ReadShoreClasses loads the coastal classification polylines with
// their primary and secondary intertidal class labels.
func ReadShoreClasses(path string, ext Extent) ([]points.ShoreClassFeature, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "vecio: open shore classes %s", path)
	}
	defer func() { _ = reader.Close() }()

	c1Idx := fieldIndex(reader, "INTERTD1_V")
	c2Idx := fieldIndex(reader, "INTERTD2_V")
	if c1Idx < 0 || c2Idx < 0 {
		return nil, eris.Errorf("vecio: shore classes %s missing INTERTD1_V/INTERTD2_V fields", path)
	}

	var feats []points.ShoreClassFeature
	for reader.Next() {
		_, shape := reader.Shape()
		pl, ok := shape.(*shp.PolyLine)
		if !ok || !ext.intersects(shape.BBox()) {
			continue
		}
		g := polyLineToMultiLineString(pl)
		if g == nil {
			continue
		}
		feats = append(feats, points.ShoreClassFeature{
			Geometry: g,
			Class1:   attribute(reader, c1Idx),
			Class2:   attribute(reader, c2Idx),
		})
	}
	return feats, nil
}

// fieldIndex finds a DBF field by name, case-insensitively. Returns -1
// if absent.
func fieldIndex(reader *shp.Reader, name string) int {
	for i, f := range reader.Fields() {
		fname := strings.TrimRight(f.String(), "\x00")
		if strings.EqualFold(fname, name) {
			return i
		}
	}
	return -1
}

func attribute(reader *shp.Reader, idx int) string {
	return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
}

// polyLineToMultiLineString converts a shapefile polyline, part by part.
func polyLineToMultiLineString(pl *shp.PolyLine) *geom.MultiLineString {
	if pl == nil || pl.NumParts == 0 || len(pl.Points) == 0 {
		return nil
	}
	mls := geom.NewMultiLineString(geom.XY)
	for i := int32(0); i < pl.NumParts; i++ {
		start, end := partRange(pl.Parts, pl.NumParts, i, len(pl.Points))
		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, pl.Points[j].X, pl.Points[j].Y)
		}
		ls := geom.NewLineStringFlat(geom.XY, flat)
		if err := mls.Push(ls); err != nil {
			zap.L().Debug("vecio: skipping malformed polyline part", zap.Int32("part", i), zap.Error(err))
		}
	}
	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}

// polygonParts converts each ring of a shapefile polygon into its own
// geom.Polygon. Interior rings are not subtracted; the rasterizer burns
// every ring independently.
func polygonParts(p *shp.Polygon) []*geom.Polygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}
	var polys []*geom.Polygon
	for i := int32(0); i < p.NumParts; i++ {
		start, end := partRange(p.Parts, p.NumParts, i, len(p.Points))
		coords := make([]geom.Coord, 0, end-start)
		for j := start; j < end; j++ {
			coords = append(coords, geom.Coord{p.Points[j].X, p.Points[j].Y})
		}
		poly := geom.NewPolygon(geom.XY)
		if _, err := poly.SetCoords([][]geom.Coord{coords}); err != nil {
			zap.L().Debug("vecio: skipping malformed polygon ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		polys = append(polys, poly)
	}
	return polys
}

func partRange(parts []int32, numParts, i int32, numPoints int) (int, int) {
	start := parts[i]
	end := int32(numPoints)
	if i+1 < numParts {
		end = parts[i+1]
	}
	return int(start), int(end)
}
