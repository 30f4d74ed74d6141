package inspect

import (
	"fmt"
	"math"
	"reflect"
	"slices"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

const (
	// MaxScatterPoints caps a lat/lon scatter sample.
	MaxScatterPoints = 50000
	// MaxSeriesPoints caps a 1-D fallback sample.
	MaxSeriesPoints = 50

	featureDim = "feature_id"
)

// SampleKind tells the renderer how to draw a sample.
type SampleKind int

const (
	// Scatter is a point cloud on lon/lat coloured by value.
	Scatter SampleKind = iota
	// Series is a short run of values along the outer dimension.
	Series
)

// Sample is a bounded slice of one variable, ready to draw.
// Missing values are NaN.
type Sample struct {
	Variable string
	Kind     SampleKind
	Lon      []float64 // Scatter only
	Lat      []float64 // Scatter only
	Values   []float64
}

// N is the number of points in the sample.
func (s Sample) N() int {
	return len(s.Values)
}

// Sample reads a bounded sample of the named variable. Variables on the
// feature_id dimension of a file with lat/lon become a scatter sample;
// anything else becomes a short series. Inner dimensions are reduced to their
// first index.
func (d *Dataset) Sample(name string) (Sample, error) {
	vg, err := d.src.GetVarGetter(name)
	if err != nil {
		return Sample{}, fmt.Errorf("read variable %q: %w", name, err)
	}

	if d.Has("lat") && d.Has("lon") && slices.Contains(vg.Dimensions(), featureDim) {
		return d.scatterSample(name, vg)
	}

	n := min(int64(MaxSeriesPoints), vg.Len())
	values, err := readValues(vg, n)
	if err != nil {
		return Sample{}, fmt.Errorf("read variable %q: %w", name, err)
	}
	return Sample{Variable: name, Kind: Series, Values: values}, nil
}

func (d *Dataset) scatterSample(name string, vg api.VarGetter) (Sample, error) {
	lat, err := d.src.GetVarGetter("lat")
	if err != nil {
		return Sample{}, fmt.Errorf("read variable %q: %w", "lat", err)
	}
	lon, err := d.src.GetVarGetter("lon")
	if err != nil {
		return Sample{}, fmt.Errorf("read variable %q: %w", "lon", err)
	}

	n := min(int64(MaxScatterPoints), vg.Len(), lat.Len(), lon.Len())

	s := Sample{Variable: name, Kind: Scatter}
	if s.Values, err = readValues(vg, n); err != nil {
		return Sample{}, fmt.Errorf("read variable %q: %w", name, err)
	}
	if s.Lat, err = readValues(lat, n); err != nil {
		return Sample{}, fmt.Errorf("read variable %q: %w", "lat", err)
	}
	if s.Lon, err = readValues(lon, n); err != nil {
		return Sample{}, fmt.Errorf("read variable %q: %w", "lon", err)
	}
	return s, nil
}

// readValues reads the first n outer elements of vg as float64, applying
// _FillValue masking and scale_factor/add_offset the way CF readers do.
func readValues(vg api.VarGetter, n int64) ([]float64, error) {
	var (
		raw any
		err error
	)
	if len(vg.Dimensions()) == 0 {
		raw, err = vg.Values()
	} else {
		raw, err = vg.GetSlice(0, n)
	}
	if err != nil {
		return nil, err
	}

	values, err := firstPerRow(raw)
	if err != nil {
		return nil, err
	}

	attrs := vg.Attributes()
	fill, hasFill := attrFloat(attrs, "_FillValue")
	scale, hasScale := attrFloat(attrs, "scale_factor")
	offset, hasOffset := attrFloat(attrs, "add_offset")
	for i, v := range values {
		if hasFill && v == fill {
			values[i] = math.NaN()
			continue
		}
		if hasScale {
			v *= scale
		}
		if hasOffset {
			v += offset
		}
		values[i] = v
	}
	return values, nil
}

func attrFloat(attrs api.AttributeMap, key string) (float64, bool) {
	if attrs == nil {
		return 0, false
	}
	raw, ok := attrs.Get(key)
	if !ok {
		return 0, false
	}
	vals, err := firstPerRow(raw)
	if err != nil || len(vals) == 0 {
		return 0, false
	}
	return vals[0], true
}

// firstPerRow flattens a (possibly nested) numeric slice to one value per
// outer element, taking index 0 of every inner dimension. A scalar becomes a
// single-element slice.
func firstPerRow(raw any) ([]float64, error) {
	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.Slice {
		f, ok := toFloat(rv)
		if !ok {
			return nil, fmt.Errorf("unsupported value type %T", raw)
		}
		return []float64{f}, nil
	}

	out := make([]float64, rv.Len())
	for i := range out {
		e := rv.Index(i)
		for e.Kind() == reflect.Slice {
			if e.Len() == 0 {
				break
			}
			e = e.Index(0)
		}
		if e.Kind() == reflect.Slice {
			out[i] = math.NaN()
			continue
		}
		f, ok := toFloat(e)
		if !ok {
			return nil, fmt.Errorf("unsupported element type %s", e.Type())
		}
		out[i] = f
	}
	return out, nil
}

func toFloat(v reflect.Value) (float64, bool) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	case reflect.Interface:
		if v.IsNil() {
			return 0, false
		}
		return toFloat(v.Elem())
	default:
		return 0, false
	}
}
