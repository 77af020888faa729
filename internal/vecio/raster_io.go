package vecio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/coastline-cli/internal/raster"
)

// ErrNoData marks a tile with no raster inputs at all, which callers
// treat as a skipped tile rather than a pipeline failure.
var ErrNoData = eris.New("vecio: no raster data for tile")

// Grids are stored as flat little-endian binaries with an ENVI-style
// .hdr sidecar: float64 for analysis grids (data type 5), byte for the
// categorical diagnostic (data type 1). The geotransform and CRS ride
// in two extension keys.
const (
	dtypeByte    = 1
	dtypeFloat64 = 5
)

// WriteGrid writes a float64 grid to path (.bin) plus its .hdr sidecar.
func WriteGrid(path string, g *raster.Grid) error {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, g.Data); err != nil {
		return eris.Wrapf(err, "vecio: encode %s", path)
	}
	return writeRaster(path, buf.Bytes(), header{
		samples:   g.Width,
		lines:     g.Height,
		dtype:     dtypeFloat64,
		transform: g.Transform,
		crs:       g.CRS,
	})
}

// WriteDiagnostic writes the categorical diagnostic raster to path
// (.bin) plus its .hdr sidecar.
func WriteDiagnostic(path string, g *raster.Int8Grid) error {
	data := make([]byte, len(g.Data))
	for i, v := range g.Data {
		data[i] = byte(v)
	}
	return writeRaster(path, data, header{
		samples:   g.Width,
		lines:     g.Height,
		dtype:     dtypeByte,
		transform: g.Transform,
		crs:       g.CRS,
	})
}

// ReadGrid reads a float64 grid written by WriteGrid.
func ReadGrid(path string) (*raster.Grid, error) {
	hdr, err := readHeader(hdrPath(path))
	if err != nil {
		return nil, err
	}
	if hdr.dtype != dtypeFloat64 {
		return nil, eris.Errorf("vecio: %s: data type %d is not float64", path, hdr.dtype)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "vecio: read %s", path)
	}
	n := hdr.samples * hdr.lines
	if len(raw) != n*8 {
		return nil, eris.Errorf("vecio: %s: %d bytes for %dx%d float64 grid", path, len(raw), hdr.samples, hdr.lines)
	}

	g := &raster.Grid{
		Width:     hdr.samples,
		Height:    hdr.lines,
		Data:      make([]float64, n),
		Transform: hdr.transform,
		CRS:       hdr.crs,
	}
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, g.Data); err != nil {
		return nil, eris.Wrapf(err, "vecio: decode %s", path)
	}
	return g, nil
}

// ReadDiagnostic reads a categorical raster written by WriteDiagnostic.
func ReadDiagnostic(path string) (*raster.Int8Grid, error) {
	hdr, err := readHeader(hdrPath(path))
	if err != nil {
		return nil, err
	}
	if hdr.dtype != dtypeByte {
		return nil, eris.Errorf("vecio: %s: data type %d is not byte", path, hdr.dtype)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "vecio: read %s", path)
	}
	if len(raw) != hdr.samples*hdr.lines {
		return nil, eris.Errorf("vecio: %s: %d bytes for %dx%d byte grid", path, len(raw), hdr.samples, hdr.lines)
	}

	g := raster.NewInt8Grid(hdr.samples, hdr.lines, hdr.transform, hdr.crs)
	for i, b := range raw {
		g.Data[i] = int8(b)
	}
	return g, nil
}

// stackVars are the per-year grid variables, in Layer order after the
// water index itself.
var stackVars = []string{"tide_m", "count", "stdev"}

// LoadStacks reads the yearly and gapfill raster stacks for one tile
// from a directory of {year}_{var}.bin files, where var is the water
// index name, tide_m, count or stdev; gapfill companions carry a
// _gapfill suffix on the variable. A directory with no water-index
// grids at all fails with ErrNoData. The gapfill stack may be nil when
// no companion files exist.
func LoadStacks(dir, index string) (yearly, gapfill *raster.Stack, err error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*_"+index+".bin"))
	if err != nil {
		return nil, nil, eris.Wrapf(err, "vecio: scan %s", dir)
	}

	var years []int
	for _, m := range matches {
		base := strings.TrimSuffix(filepath.Base(m), "_"+index+".bin")
		year, convErr := strconv.Atoi(base)
		if convErr != nil {
			continue
		}
		years = append(years, year)
	}
	if len(years) == 0 {
		return nil, nil, eris.Wrapf(ErrNoData, "directory %s, index %s", dir, index)
	}
	sort.Ints(years)

	var yearlyLayers, gapfillLayers []raster.Layer
	for _, year := range years {
		l, loadErr := loadLayer(dir, year, index, "")
		if loadErr != nil {
			return nil, nil, loadErr
		}
		yearlyLayers = append(yearlyLayers, *l)

		gl, loadErr := loadLayer(dir, year, index, "_gapfill")
		if loadErr != nil {
			if os.IsNotExist(eris.Cause(loadErr)) {
				continue
			}
			return nil, nil, loadErr
		}
		gapfillLayers = append(gapfillLayers, *gl)
	}

	yearly, err = raster.NewStack(yearlyLayers)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "vecio: yearly stack %s", dir)
	}
	if len(gapfillLayers) > 0 {
		gapfill, err = raster.NewStack(gapfillLayers)
		if err != nil {
			return nil, nil, eris.Wrapf(err, "vecio: gapfill stack %s", dir)
		}
	} else {
		zap.L().Warn("vecio: no gapfill grids found", zap.String("dir", dir))
	}
	return yearly, gapfill, nil
}

func loadLayer(dir string, year int, index, suffix string) (*raster.Layer, error) {
	load := func(v string) (*raster.Grid, error) {
		return ReadGrid(filepath.Join(dir, fmt.Sprintf("%d_%s%s.bin", year, v, suffix)))
	}

	idx, err := load(index)
	if err != nil {
		return nil, err
	}
	tide, err := load(stackVars[0])
	if err != nil {
		return nil, err
	}
	count, err := load(stackVars[1])
	if err != nil {
		return nil, err
	}
	stdev, err := load(stackVars[2])
	if err != nil {
		return nil, err
	}
	return &raster.Layer{Year: year, Index: idx, Tide: tide, Count: count, Stdev: stdev}, nil
}

type header struct {
	samples, lines int
	dtype          int
	transform      raster.Affine
	crs            string
}

func hdrPath(binPath string) string {
	return strings.TrimSuffix(binPath, filepath.Ext(binPath)) + ".hdr"
}

func writeRaster(path string, data []byte, hdr header) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "vecio: write %s", path)
	}

	t := hdr.transform
	var b strings.Builder
	b.WriteString("ENVI\n")
	fmt.Fprintf(&b, "samples = %d\n", hdr.samples)
	fmt.Fprintf(&b, "lines = %d\n", hdr.lines)
	b.WriteString("bands = 1\n")
	b.WriteString("header offset = 0\n")
	fmt.Fprintf(&b, "data type = %d\n", hdr.dtype)
	b.WriteString("interleave = bsq\n")
	b.WriteString("byte order = 0\n")
	fmt.Fprintf(&b, "transform = {%g, %g, %g, %g, %g, %g}\n", t.A, t.B, t.C, t.D, t.E, t.F)
	fmt.Fprintf(&b, "coordinate system string = {%s}\n", hdr.crs)

	if err := os.WriteFile(hdrPath(path), []byte(b.String()), 0o644); err != nil {
		return eris.Wrapf(err, "vecio: write %s", hdrPath(path))
	}
	return nil
}

func readHeader(path string) (header, error) {
	f, err := os.Open(path)
	if err != nil {
		return header{}, eris.Wrapf(err, "vecio: open header %s", path)
	}
	defer f.Close() //nolint:errcheck

	var hdr header
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "samples":
			hdr.samples, err = strconv.Atoi(value)
		case "lines":
			hdr.lines, err = strconv.Atoi(value)
		case "data type":
			hdr.dtype, err = strconv.Atoi(value)
		case "transform":
			err = parseTransform(value, &hdr.transform)
		case "coordinate system string":
			hdr.crs = strings.Trim(value, "{}")
		}
		if err != nil {
			return header{}, eris.Wrapf(err, "vecio: header %s: %s", path, key)
		}
	}
	if err := sc.Err(); err != nil {
		return header{}, eris.Wrapf(err, "vecio: read header %s", path)
	}
	if hdr.samples <= 0 || hdr.lines <= 0 {
		return header{}, eris.Errorf("vecio: header %s: missing samples/lines", path)
	}
	return hdr, nil
}

func parseTransform(value string, t *raster.Affine) error {
	fields := strings.Split(strings.Trim(value, "{}"), ",")
	if len(fields) != 6 {
		return eris.Errorf("expected 6 transform terms, got %d", len(fields))
	}
	dst := []*float64{&t.A, &t.B, &t.C, &t.D, &t.E, &t.F}
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return eris.Wrapf(err, "transform term %d", i)
		}
		*dst[i] = v
	}
	return nil
}
