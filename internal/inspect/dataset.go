// Package inspect reads a local NetCDF file for a quick look: a summary of
// its variables and a small sample of one numeric variable.
package inspect

import (
	"errors"
	"fmt"
	"slices"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

var ErrNoPlottableVariable = errors.New("no numeric variables found to plot")

// PreferredVariables are tried in order before falling back to the first
// numeric data variable. They cover the hydrology outputs served by the portal.
var PreferredVariables = []string{"So", "TopWdth", "TopWdthCC", "order", "Qi", "nCC"}

// numericTypes are the CDL base types treated as plottable.
var numericTypes = []string{"byte", "short", "int", "int64", "float", "double"}

// source is the subset of api.Group used here.
type source interface {
	Close()
	Attributes() api.AttributeMap
	ListVariables() []string
	GetVarGetter(name string) (api.VarGetter, error)
}

// Dataset is an open NetCDF file.
type Dataset struct {
	path string
	src  source
}

// Open opens the NetCDF (classic or HDF5-based) file at path.
func Open(path string) (*Dataset, error) {
	g, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", path, err)
	}
	return &Dataset{path: path, src: g}, nil
}

// Close releases the underlying file.
func (d *Dataset) Close() {
	d.src.Close()
}

// Has reports whether a variable with the given name exists.
func (d *Dataset) Has(name string) bool {
	return slices.Contains(d.src.ListVariables(), name)
}

// Variable describes one variable without reading its values.
type Variable struct {
	Name       string
	Dimensions []string
	Type       string
	Len        int64
}

// IsCoordinate reports whether the variable is indexed by a dimension of its own name.
func (v Variable) IsCoordinate() bool {
	return slices.Contains(v.Dimensions, v.Name)
}

// IsNumeric reports whether the variable holds signed integers or floats.
func (v Variable) IsNumeric() bool {
	return slices.Contains(numericTypes, v.Type)
}

// Attribute is one global attribute.
type Attribute struct {
	Key   string
	Value any
}

// Summary lists variables and global attributes in file order.
type Summary struct {
	Path       string
	Variables  []Variable
	Attributes []Attribute
}

// Summary describes the dataset.
func (d *Dataset) Summary() (Summary, error) {
	s := Summary{Path: d.path}
	for _, name := range d.src.ListVariables() {
		v, err := d.variable(name)
		if err != nil {
			return Summary{}, err
		}
		s.Variables = append(s.Variables, v)
	}
	if attrs := d.src.Attributes(); attrs != nil {
		for _, k := range attrs.Keys() {
			val, _ := attrs.Get(k)
			s.Attributes = append(s.Attributes, Attribute{Key: k, Value: val})
		}
	}
	return s, nil
}

// PlotVariable picks the variable to display: the first preferred name that
// exists, otherwise the first numeric non-coordinate variable.
func (d *Dataset) PlotVariable() (string, error) {
	for _, name := range PreferredVariables {
		if d.Has(name) {
			return name, nil
		}
	}
	for _, name := range d.src.ListVariables() {
		v, err := d.variable(name)
		if err != nil {
			return "", err
		}
		if v.IsNumeric() && !v.IsCoordinate() {
			return name, nil
		}
	}
	return "", ErrNoPlottableVariable
}

func (d *Dataset) variable(name string) (Variable, error) {
	vg, err := d.src.GetVarGetter(name)
	if err != nil {
		return Variable{}, fmt.Errorf("read variable %q: %w", name, err)
	}
	return Variable{
		Name:       name,
		Dimensions: vg.Dimensions(),
		Type:       vg.Type(),
		Len:        vg.Len(),
	}, nil
}
