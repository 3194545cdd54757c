package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geos"
)

// DBF field types.
const (
	FieldString  byte = 'C'
	FieldNumber  byte = 'N'
	FieldFloat   byte = 'F'
	FieldDate    byte = 'D'
	FieldLogical byte = 'L'
)

// MaxFieldNameLength is the DBF field name limit.
const MaxFieldNameLength = 10

// Field describes one attribute column.
type Field struct {
	Name      string
	Type      byte
	Size      uint8
	Precision uint8
}

// Feature is one record: a polygonal geometry (nil when null) and values
// aligned with the layer fields. A nil value is null.
type Feature struct {
	Geom   *geos.Geom
	Values []any
	// Issues holds ring problems found while reading the record.
	Issues []string
}

// Extent is a bounding box.
type Extent struct {
	MinX, MinY, MaxX, MaxY float64
}

func (e Extent) String() string {
	return fmt.Sprintf("%.6f %.6f %.6f %.6f", e.MinX, e.MinY, e.MaxX, e.MaxY)
}

// Layer is an in-memory polygon feature class.
type Layer struct {
	Name      string
	Path      string
	ShapeType shp.ShapeType
	Fields    []Field
	Features  []*Feature
	// Projection is the .prj WKT; empty when the layer has none.
	Projection string
	// Encoding is the code page named in the .cpg sidecar, e.g. "UTF-8".
	// Attribute bytes are kept as read, so the declaration travels with them.
	Encoding string
	Extent     Extent
}

// NewLayer creates an empty polygon layer with a copy of fields.
func NewLayer(name string, fields []Field) *Layer {
	return &Layer{
		Name:      name,
		ShapeType: shp.POLYGON,
		Fields:    append([]Field{}, fields...),
	}
}

// ShapefilePath normalises p to end in ".shp".
func ShapefilePath(p string) string {
	if strings.EqualFold(filepath.Ext(p), ".shp") {
		return p
	}
	return p + ".shp"
}

// Exists reports whether the shapefile at p exists.
func Exists(p string) bool {
	_, err := os.Stat(ShapefilePath(p))
	return err == nil
}

func sidecar(p, ext string) string {
	p = ShapefilePath(p)
	return strings.TrimSuffix(p, filepath.Ext(p)) + ext
}

// LayerName returns the dataset name of a shapefile path.
func LayerName(p string) string {
	base := filepath.Base(ShapefilePath(p))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// FieldIndex returns the index of the field named name (case-insensitive), or -1.
func (l *Layer) FieldIndex(name string) int {
	for i, f := range l.Fields {
		if strings.EqualFold(f.Name, name) {
			return i
		}
	}
	return -1
}

// HasField reports whether the layer has a field named name.
func (l *Layer) HasField(name string) bool {
	return l.FieldIndex(name) >= 0
}

// FieldNames returns the field names in order.
func (l *Layer) FieldNames() []string {
	names := make([]string, len(l.Fields))
	for i, f := range l.Fields {
		names[i] = f.Name
	}
	return names
}

// AddField appends f and a null value to every feature. It returns the field
// index; adding an existing name returns the existing index.
func (l *Layer) AddField(f Field) int {
	if i := l.FieldIndex(f.Name); i >= 0 {
		return i
	}
	l.Fields = append(l.Fields, f)
	for _, feat := range l.Features {
		feat.Values = append(feat.Values, nil)
	}
	return len(l.Fields) - 1
}

// RenameField renames the field from to to.
func (l *Layer) RenameField(from, to string) error {
	i := l.FieldIndex(from)
	if i < 0 {
		return NewError(ErrCodeMissingField, "field %s not found in %s", from, l.Name)
	}
	if j := l.FieldIndex(to); j >= 0 && j != i {
		return NewError(ErrCodeInvalidInput, "cannot rename %s to %s: field already exists", from, to)
	}
	l.Fields[i].Name = to
	return nil
}

// Value returns the value of field name on f, or nil.
func (l *Layer) Value(f *Feature, name string) any {
	i := l.FieldIndex(name)
	if i < 0 || i >= len(f.Values) {
		return nil
	}
	return f.Values[i]
}

// Count returns the number of features.
func (l *Layer) Count() int {
	return len(l.Features)
}

// AsInt converts a field value to an int; ok is false for null or non-numeric values.
func AsInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}

// AsFloat converts a field value to a float64; ok is false for null or non-numeric values.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// ReadLayer reads a shapefile and its .prj and .cpg sidecars.
func ReadLayer(path string) (*Layer, error) {
	path = ShapefilePath(path)
	if _, err := os.Stat(path); err != nil {
		return nil, WrapError(ErrCodeFileNotFound, err, "input feature class %s not found", path)
	}

	reader, err := shp.Open(path)
	if err != nil {
		return nil, WrapError(ErrCodeInvalidInput, err, "failed to open %s", path)
	}
	defer reader.Close()

	layer := &Layer{
		Name:      LayerName(path),
		Path:      path,
		ShapeType: reader.GeometryType,
	}
	box := reader.BBox()
	layer.Extent = Extent{MinX: box.MinX, MinY: box.MinY, MaxX: box.MaxX, MaxY: box.MaxY}

	for _, f := range reader.Fields() {
		layer.Fields = append(layer.Fields, Field{
			Name:      strings.TrimSpace(strings.TrimRight(string(f.Name[:]), "\x00")),
			Type:      f.Fieldtype,
			Size:      f.Size,
			Precision: f.Precision,
		})
	}

	for reader.Next() {
		n, shape := reader.Shape()
		feature := &Feature{Values: make([]any, len(layer.Fields))}

		parts, ok := shapeParts(shape)
		if !ok {
			feature.Issues = append(feature.Issues, IssueNullGeometry)
		} else {
			g, issues, err := PolygonFromRings(parts)
			if err != nil {
				return nil, WrapError(ErrCodeInvalidInput, err, "record %d of %s", n, path)
			}
			feature.Geom = g
			feature.Issues = append(feature.Issues, issues...)
			if g == nil {
				feature.Issues = append(feature.Issues, IssueEmptyGeometry)
			}
		}

		for i, f := range layer.Fields {
			feature.Values[i] = parseValue(f, reader.ReadAttribute(n, i))
		}
		layer.Features = append(layer.Features, feature)
	}
	if err := reader.Err(); err != nil {
		return nil, WrapError(ErrCodeInvalidInput, err, "failed to read %s", path)
	}

	if prj, err := os.ReadFile(sidecar(path, ".prj")); err == nil {
		layer.Projection = strings.TrimSpace(string(prj))
	}
	if cpg, err := os.ReadFile(sidecar(path, ".cpg")); err == nil {
		layer.Encoding = strings.TrimSpace(string(cpg))
	}

	return layer, nil
}

// shapeParts splits a polygon-like shape into flat XY rings. ok is false
// for null shapes and non-areal types.
func shapeParts(shape shp.Shape) ([][]float64, bool) {
	var parts []int32
	var points []shp.Point
	switch s := shape.(type) {
	case *shp.Polygon:
		parts, points = s.Parts, s.Points
	case *shp.PolygonZ:
		parts, points = s.Parts, s.Points
	case *shp.PolygonM:
		parts, points = s.Parts, s.Points
	case *shp.MultiPatch:
		parts, points = s.Parts, s.Points
	default:
		return nil, false
	}
	if len(points) == 0 {
		return nil, true
	}

	rings := make([][]float64, 0, len(parts))
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || start > end || int(end) > len(points) {
			continue
		}
		flat := make([]float64, 0, 2*(end-start))
		for _, p := range points[start:end] {
			flat = append(flat, p.X, p.Y)
		}
		rings = append(rings, flat)
	}
	return rings, true
}

func parseValue(f Field, raw string) any {
	raw = strings.Trim(raw, " \x00")
	if raw == "" {
		return nil
	}
	switch f.Type {
	case FieldNumber:
		if f.Precision == 0 {
			if i, err := strconv.Atoi(raw); err == nil {
				return i
			}
		}
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
		return nil
	case FieldFloat:
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
		return nil
	}
	return raw
}

// WriteLayer writes layer as a polygon shapefile at path, with a .prj when
// the layer has a projection and a .cpg when it has an encoding.
func WriteLayer(path string, layer *Layer) error {
	path = ShapefilePath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return WrapError(ErrCodeInternal, err, "failed to create %s", filepath.Dir(path))
	}

	writer, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return WrapError(ErrCodeInternal, err, "failed to create shapefile %s", path)
	}

	fields := make([]shp.Field, len(layer.Fields))
	for i, f := range layer.Fields {
		fields[i] = toShpField(f)
	}
	if len(fields) == 0 {
		fields = append(fields, shp.NumberField("ID", 10))
	}
	if err := writer.SetFields(fields); err != nil {
		writer.Close()
		return WrapError(ErrCodeInternal, err, "failed to set fields on %s", path)
	}

	for i, feature := range layer.Features {
		rings, err := RingsFromGeom(feature.Geom)
		if err != nil {
			writer.Close()
			return WrapError(ErrCodeInternal, err, "feature %d of %s", i, layer.Name)
		}

		var row int32
		if len(rings) == 0 {
			row = writer.Write(&shp.Null{})
		} else {
			parts := make([][]shp.Point, len(rings))
			for r, flat := range rings {
				pts := make([]shp.Point, 0, len(flat)/2)
				for k := 0; k+1 < len(flat); k += 2 {
					pts = append(pts, shp.Point{X: flat[k], Y: flat[k+1]})
				}
				parts[r] = pts
			}
			polygon := shp.Polygon(*shp.NewPolyLine(parts))
			row = writer.Write(&polygon)
		}

		if len(layer.Fields) == 0 {
			if err := writer.WriteAttribute(int(row), 0, i+1); err != nil {
				writer.Close()
				return WrapError(ErrCodeInternal, err, "feature %d of %s", i, layer.Name)
			}
			continue
		}
		for j, f := range layer.Fields {
			if j >= len(feature.Values) {
				break
			}
			v := formatValue(f, feature.Values[j])
			if v == nil {
				continue
			}
			if err := writer.WriteAttribute(int(row), j, v); err != nil {
				writer.Close()
				return WrapError(ErrCodeInternal, err, "field %s of feature %d in %s", f.Name, i, layer.Name)
			}
		}
	}
	writer.Close()

	if layer.Projection != "" {
		if err := os.WriteFile(sidecar(path, ".prj"), []byte(layer.Projection), 0o644); err != nil {
			return WrapError(ErrCodeInternal, err, "failed to write projection for %s", path)
		}
	}
	if layer.Encoding != "" {
		if err := os.WriteFile(sidecar(path, ".cpg"), []byte(layer.Encoding), 0o644); err != nil {
			return WrapError(ErrCodeInternal, err, "failed to write encoding for %s", path)
		}
	}
	return nil
}

// DeleteLayer removes a shapefile and its sidecars, ignoring missing files.
func DeleteLayer(path string) error {
	for _, ext := range []string{".shp", ".shx", ".dbf", ".prj", ".cpg"} {
		if err := os.Remove(sidecar(path, ext)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func toShpField(f Field) shp.Field {
	var out shp.Field
	name := f.Name
	if len(name) > MaxFieldNameLength {
		name = name[:MaxFieldNameLength]
	}
	copy(out.Name[:], name)
	out.Fieldtype = f.Type
	out.Size = f.Size
	out.Precision = f.Precision
	return out
}

// formatValue converts v to a type the DBF writer accepts: int, float64 or string.
func formatValue(f Field, v any) any {
	if v == nil {
		return nil
	}
	switch f.Type {
	case FieldNumber, FieldFloat:
		if f.Type == FieldNumber && f.Precision == 0 {
			if i, ok := AsInt(v); ok {
				return i
			}
			return nil
		}
		if x, ok := AsFloat(v); ok {
			return x
		}
		return nil
	}
	switch s := v.(type) {
	case string:
		return s
	case bool:
		if s {
			return "T"
		}
		return "F"
	default:
		return fmt.Sprint(s)
	}
}
