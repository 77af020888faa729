// Package climate loads climate-index timeseries (SOI, PDO) from the
// NOAA PSL long-format data files, either from a local path or over
// HTTP. Monthly values are aggregated to annual means, clipped to the
// analysis period, and optionally linearly detrended.
package climate

import (
	"bufio"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/coastline-cli/internal/model"
	"github.com/sells-group/coastline-cli/internal/regress"
)

// IndexSpec describes one NOAA PSL long-format index file: a header
// line, rows of year plus twelve monthly values, and a trailing block
// of metadata lines. Missing months carry a per-index sentinel.
type IndexSpec struct {
	Name   string
	Source string // local path or http(s) URL
	Footer int    // metadata lines at the end of the file
	NoData float64
}

// KnownIndexes returns the built-in index definitions.
func KnownIndexes() map[string]IndexSpec {
	return map[string]IndexSpec{
		"soi": {
			Name:   "soi",
			Source: "https://psl.noaa.gov/gcos_wgsp/Timeseries/Data/soi.long.data",
			Footer: 9,
			NoData: -99.99,
		},
		"pdo": {
			Name:   "pdo",
			Source: "https://psl.noaa.gov/gcos_wgsp/Timeseries/Data/pdo.long.data",
			Footer: 12,
			NoData: -9.90,
		},
	}
}

// LoadOptions controls year clipping and detrending.
type LoadOptions struct {
	FirstYear int
	LastYear  int
	Detrend   bool
}

// Load reads one climate index from its source and returns annual
// means keyed by year. Years with no valid monthly values are omitted.
func Load(spec IndexSpec, opts LoadOptions, fetch Fetcher) (model.ClimateSeries, error) {
	r, err := open(spec.Source, fetch)
	if err != nil {
		return nil, eris.Wrapf(err, "climate: open %s", spec.Name)
	}
	defer r.Close() //nolint:errcheck

	series, err := Parse(r, spec)
	if err != nil {
		return nil, eris.Wrapf(err, "climate: parse %s", spec.Name)
	}

	series = Clip(series, opts.FirstYear, opts.LastYear)
	if opts.Detrend {
		series = regress.Detrend(series)
	}
	return series, nil
}

func open(source string, fetch Fetcher) (io.ReadCloser, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		if fetch == nil {
			fetch = NewHTTPFetcher(HTTPOptions{})
		}
		return fetch.Download(source)
	}
	return os.Open(source)
}

// Parse reads a NOAA PSL long-format file: the first line is a header,
// the last spec.Footer lines are metadata, and each remaining row is a
// year followed by up to twelve monthly values. Sentinel values are
// treated as missing and skipped when averaging.
func Parse(r io.Reader, spec IndexSpec) (model.ClimateSeries, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "read")
	}

	if len(lines) < 1+spec.Footer {
		return nil, eris.Errorf("file too short: %d lines with footer %d", len(lines), spec.Footer)
	}
	rows := lines[1 : len(lines)-spec.Footer]

	series := make(model.ClimateSeries, len(rows))
	for _, row := range rows {
		fields := strings.Fields(row)
		if len(fields) < 2 {
			continue
		}
		year, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, eris.Wrapf(err, "parse year %q", fields[0])
		}

		sum, n := 0.0, 0
		for _, f := range fields[1:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, eris.Wrapf(err, "parse value %q in year %d", f, year)
			}
			if v == spec.NoData {
				continue
			}
			sum += v
			n++
		}
		if n == 0 {
			continue
		}
		series[year] = sum / float64(n)
	}

	if len(series) == 0 {
		return nil, eris.New("no data rows")
	}
	return series, nil
}

// Clip returns the subset of the series with first <= year <= last.
// Zero bounds are open.
func Clip(series model.ClimateSeries, first, last int) model.ClimateSeries {
	out := make(model.ClimateSeries, len(series))
	for y, v := range series {
		if first != 0 && y < first {
			continue
		}
		if last != 0 && y > last {
			continue
		}
		out[y] = v
	}
	return out
}

// Years returns the sorted years of a series.
func Years(series model.ClimateSeries) []int {
	years := make([]int, 0, len(series))
	for y := range series {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// Align extracts values for the given years in order, NaN where the
// series has no entry. Regression against shoreline movements needs
// both sides on the same year labels.
func Align(series model.ClimateSeries, years []int) []float64 {
	out := make([]float64, len(years))
	for i, y := range years {
		v, ok := series[y]
		if !ok {
			v = math.NaN()
		}
		out[i] = v
	}
	return out
}
