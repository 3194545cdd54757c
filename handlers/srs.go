package handlers

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/everystreet/go-proj/v8/proj"

	"github.com/bsaid97/go-boundary-prep/utils"
)

// UnknownSRS is the name of a missing spatial reference.
const UnknownSRS = "Unknown"

// WGS84 EPSG codes for the datum and the spheroid.
const (
	WGS84DatumCode    = 6326
	WGS84SpheroidCode = 7030
)

// WGS84PRJ is written as the .prj of reprojected copies.
const WGS84PRJ = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

// wgs84Target is the PROJ definition of WGS84 geographic coordinates in
// longitude, latitude order.
const wgs84Target = "+proj=longlat +datum=WGS84 +no_defs +type=crs"

// SpatialReference is the part of a .prj WKT the checks look at.
type SpatialReference struct {
	Name         string
	Geographic   bool
	DatumName    string
	DatumCode    int
	SpheroidName string
	SpheroidCode int
	WKT          string
}

// IsWGS84 reports whether the datum or the spheroid is WGS 1984.
func (sr SpatialReference) IsWGS84() bool {
	if sr.DatumCode == WGS84DatumCode || sr.SpheroidCode == WGS84SpheroidCode {
		return true
	}
	return isWGS84Name(sr.DatumName) || isWGS84Name(sr.SpheroidName)
}

func isWGS84Name(name string) bool {
	n := strings.ToUpper(name)
	n = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(n)
	n = strings.TrimPrefix(n, "D")
	return n == "WGS84" || n == "WGS1984" || n == "WORLDGEODETICSYSTEM1984"
}

// ParseSpatialReference reads a WKT (ESRI .prj, WKT1 or WKT2) spatial
// reference. An empty or unparsable string gives an "Unknown" reference.
func ParseSpatialReference(wkt string) SpatialReference {
	wkt = strings.TrimSpace(wkt)
	sr := SpatialReference{Name: UnknownSRS, WKT: wkt}
	if wkt == "" {
		return sr
	}
	root, err := parseWKT(wkt)
	if err != nil || len(root.args) == 0 {
		return sr
	}

	if name, ok := root.args[0].(string); ok && name != "" {
		sr.Name = name
	}
	switch root.keyword {
	case "GEOGCS", "GEOGCRS", "GEOGRAPHICCRS":
		sr.Geographic = true
	case "GEODCRS", "GEODETICCRS":
		sr.Geographic = root.child("CS") == nil || strings.EqualFold(root.child("CS").text(0), "ellipsoidal")
	}

	if datum := root.find("DATUM", "GEODETICDATUM", "TRF"); datum != nil {
		sr.DatumName = datum.text(0)
		sr.DatumCode = datum.epsgCode()
	}
	if spheroid := root.find("SPHEROID", "ELLIPSOID"); spheroid != nil {
		sr.SpheroidName = spheroid.text(0)
		sr.SpheroidCode = spheroid.epsgCode()
	}
	return sr
}

// CheckSRS reports whether sr is geographic and on WGS84, warning when the
// working copy will need to be projected.
func CheckSRS(ctx context.Context, sr SpatialReference) (bool, bool) {
	isGeo, wgs84 := sr.Geographic, sr.IsWGS84()
	if !isGeo || !wgs84 {
		utils.LoggerFromContext(ctx).Warn("Coordinate system is not Geographic (WGS84), copied feature class will be projected to match")
	}
	return isGeo, wgs84
}

// Reproject transforms every feature of layer to WGS84 longitude/latitude,
// rounds coordinates to precision decimals and repairs geometries the
// rounding made invalid. It returns the number of repaired geometries.
func Reproject(ctx context.Context, layer *utils.Layer, precision int) (int, error) {
	logger := utils.LoggerFromContext(ctx)
	if layer.Projection == "" {
		return 0, utils.NewError(utils.ErrCodeMissingProjection, "%s has no projection to transform from", layer.Name)
	}

	sw := utils.NewStopwatch(logger)
	var transformErr error
	err := proj.CRSToCRS(layer.Projection, wgs84Target, func(pj proj.Projection) {
		transform := func(x, y float64) (float64, float64, error) {
			c := proj.XY{X: x, Y: y}
			proj.TransformForward(pj, &c)
			// PROJ reports a failed transform as HUGE_VAL.
			if !finite(c.X) || !finite(c.Y) {
				return 0, 0, fmt.Errorf("coordinate (%v, %v) cannot be projected to WGS84", x, y)
			}
			return c.X, c.Y, nil
		}
		for i, f := range layer.Features {
			if err := ctx.Err(); err != nil {
				transformErr = err
				return
			}
			if f.Geom == nil {
				continue
			}
			g, err := utils.MapCoords(f.Geom, transform)
			if err != nil {
				transformErr = fmt.Errorf("feature %d: %w", i, err)
				return
			}
			f.Geom = g
		}
	})
	if err != nil {
		return 0, utils.WrapError(utils.ErrCodeMissingProjection, err, "cannot transform %s to WGS84", layer.Name)
	}
	if transformErr != nil {
		code := utils.ErrCodeInvalidInput
		if ctx.Err() != nil {
			code = utils.ErrCodeInternal
		}
		return 0, utils.WrapError(code, transformErr, "failed to project %s", layer.Name)
	}

	repaired := 0
	for i, f := range layer.Features {
		if f.Geom == nil {
			continue
		}
		g, err := utils.TruncateGeometry(f.Geom, precision)
		if err != nil {
			return 0, utils.WrapError(utils.ErrCodeInternal, err, "feature %d of %s", i, layer.Name)
		}
		if !g.IsValid() {
			g = utils.Polygonal(g.MakeValid(), 0)
			repaired++
		}
		f.Geom = g
	}

	layer.Projection = WGS84PRJ
	layer.Extent = layerExtent(layer)
	sw.Done("Projected features to WGS84")
	if repaired > 0 {
		logger.Warnf("%d geometries were repaired after rounding to %d decimals.", repaired, precision)
	}
	return repaired, nil
}

func finite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}

func layerExtent(layer *utils.Layer) utils.Extent {
	var e utils.Extent
	first := true
	for _, f := range layer.Features {
		if f.Geom == nil || f.Geom.IsEmpty() {
			continue
		}
		b := utils.BoundsOf(f.Geom)
		if first {
			e, first = b, false
			continue
		}
		e.MinX = min(e.MinX, b.MinX)
		e.MinY = min(e.MinY, b.MinY)
		e.MaxX = max(e.MaxX, b.MaxX)
		e.MaxY = max(e.MaxY, b.MaxY)
	}
	return e
}

// wktNode is one KEYWORD[arg, ...] element. Arguments are strings (quoted
// text and bare numbers or enums) or nested nodes.
type wktNode struct {
	keyword string
	args    []any
}

func (n *wktNode) text(i int) string {
	if n == nil || i >= len(n.args) {
		return ""
	}
	s, _ := n.args[i].(string)
	return s
}

func (n *wktNode) child(keyword string) *wktNode {
	for _, a := range n.args {
		if c, ok := a.(*wktNode); ok && c.keyword == keyword {
			return c
		}
	}
	return nil
}

// find returns the first descendant, depth first, with one of keywords.
func (n *wktNode) find(keywords ...string) *wktNode {
	for _, a := range n.args {
		c, ok := a.(*wktNode)
		if !ok {
			continue
		}
		for _, k := range keywords {
			if c.keyword == k {
				return c
			}
		}
		if found := c.find(keywords...); found != nil {
			return found
		}
	}
	return nil
}

// epsgCode reads AUTHORITY["EPSG","6326"] or ID["EPSG",6326].
func (n *wktNode) epsgCode() int {
	for _, k := range []string{"AUTHORITY", "ID"} {
		c := n.child(k)
		if c == nil || !strings.EqualFold(c.text(0), "EPSG") {
			continue
		}
		if code, err := strconv.Atoi(c.text(1)); err == nil {
			return code
		}
	}
	return 0
}

func parseWKT(s string) (*wktNode, error) {
	p := &wktParser{s: s}
	node, err := p.node()
	if err != nil {
		return nil, err
	}
	return node, nil
}

type wktParser struct {
	s   string
	pos int
}

func (p *wktParser) skipSpace() {
	for p.pos < len(p.s) && strings.ContainsRune(" \t\r\n", rune(p.s[p.pos])) {
		p.pos++
	}
}

func (p *wktParser) node() (*wktNode, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.s) && !strings.ContainsRune("[(,])", rune(p.s[p.pos])) {
		p.pos++
	}
	keyword := strings.ToUpper(strings.TrimSpace(p.s[start:p.pos]))
	if keyword == "" {
		return nil, fmt.Errorf("wkt: expected keyword at offset %d", start)
	}
	node := &wktNode{keyword: keyword}

	p.skipSpace()
	if p.pos >= len(p.s) || (p.s[p.pos] != '[' && p.s[p.pos] != '(') {
		return node, nil
	}
	p.pos++

	for {
		p.skipSpace()
		if p.pos >= len(p.s) {
			return nil, fmt.Errorf("wkt: unterminated %s", keyword)
		}
		switch c := p.s[p.pos]; {
		case c == ']' || c == ')':
			p.pos++
			return node, nil
		case c == ',':
			p.pos++
		case c == '"':
			p.pos++
			var b strings.Builder
			for p.pos < len(p.s) {
				if p.s[p.pos] == '"' {
					// "" is an escaped quote.
					if p.pos+1 < len(p.s) && p.s[p.pos+1] == '"' {
						b.WriteByte('"')
						p.pos += 2
						continue
					}
					break
				}
				b.WriteByte(p.s[p.pos])
				p.pos++
			}
			if p.pos >= len(p.s) {
				return nil, fmt.Errorf("wkt: unterminated string in %s", keyword)
			}
			p.pos++
			node.args = append(node.args, b.String())
		default:
			save := p.pos
			for p.pos < len(p.s) && !strings.ContainsRune("[(,])", rune(p.s[p.pos])) {
				p.pos++
			}
			if p.pos < len(p.s) && (p.s[p.pos] == '[' || p.s[p.pos] == '(') {
				p.pos = save
				child, err := p.node()
				if err != nil {
					return nil, err
				}
				node.args = append(node.args, child)
				continue
			}
			node.args = append(node.args, strings.TrimSpace(p.s[save:p.pos]))
		}
	}
}
