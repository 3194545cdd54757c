package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bsaid97/go-boundary-prep/utils"
)

const (
	wkt1WGS84       = `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433]]`
	esriUTM         = `PROJCS["NAD_1983_UTM_Zone_18N",GEOGCS["GCS_North_American_1983",DATUM["D_North_American_1983",SPHEROID["GRS_1980",6378137.0,298.257222101]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]],PROJECTION["Transverse_Mercator"],PARAMETER["False_Easting",500000.0],PARAMETER["False_Northing",0.0],PARAMETER["Central_Meridian",-75.0],PARAMETER["Scale_Factor",0.9996],PARAMETER["Latitude_Of_Origin",0.0],UNIT["Meter",1.0]]`
	wkt2WGS84       = `GEOGCRS["WGS 84",DATUM["World Geodetic System 1984",ELLIPSOID["WGS 84",6378137,298.257223563,LENGTHUNIT["metre",1]]],PRIMEM["Greenwich",0,ANGLEUNIT["degree",0.0174532925199433]],CS[ellipsoidal,2],ID["EPSG",4326]]`
	esriWebMercator = `PROJCS["WGS_1984_Web_Mercator_Auxiliary_Sphere",GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]],PROJECTION["Mercator_Auxiliary_Sphere"],UNIT["Meter",1.0]]`
)

func TestParseSpatialReference(t *testing.T) {
	tests := []struct {
		name         string
		wkt          string
		wantName     string
		geographic   bool
		wgs84        bool
		datumCode    int
		spheroidCode int
	}{
		{"esri wgs84", WGS84PRJ, "GCS_WGS_1984", true, true, 0, 0},
		{"wkt1 with authorities", wkt1WGS84, "WGS 84", true, true, 6326, 7030},
		{"projected on nad83", esriUTM, "NAD_1983_UTM_Zone_18N", false, false, 0, 0},
		{"wkt2", wkt2WGS84, "WGS 84", true, true, 0, 0},
		{"projected on wgs84", esriWebMercator, "WGS_1984_Web_Mercator_Auxiliary_Sphere", false, true, 0, 0},
		{"missing", "", UnknownSRS, false, false, 0, 0},
		{"garbage", `GEOGCS["broken"`, UnknownSRS, false, false, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sr := ParseSpatialReference(tt.wkt)
			assert.Equal(t, tt.wantName, sr.Name)
			assert.Equal(t, tt.geographic, sr.Geographic)
			assert.Equal(t, tt.wgs84, sr.IsWGS84())
			assert.Equal(t, tt.datumCode, sr.DatumCode)
			assert.Equal(t, tt.spheroidCode, sr.SpheroidCode)
		})
	}
}

func TestCheckSRS(t *testing.T) {
	ctx, logs := testContext(t)

	isGeo, wgs84 := CheckSRS(ctx, ParseSpatialReference(WGS84PRJ))
	assert.True(t, isGeo)
	assert.True(t, wgs84)
	assert.NotContains(t, logs.String(), "will be projected")

	isGeo, wgs84 = CheckSRS(ctx, ParseSpatialReference(esriUTM))
	assert.False(t, isGeo)
	assert.False(t, wgs84)
	assert.Contains(t, logs.String(), "will be projected")
}

func TestReprojectWebMercator(t *testing.T) {
	ctx, _ := testContext(t)
	layer := polygonLayer(t, "merc",
		"POLYGON ((0 0, 111319.49079327357 0, 111319.49079327357 111325.1428663851, 0 111325.1428663851, 0 0))")
	layer.Projection = "EPSG:3857"

	repaired, err := Reproject(ctx, layer, 7)
	require.NoError(t, err)
	assert.Zero(t, repaired)
	assert.Equal(t, WGS84PRJ, layer.Projection)

	b := utils.BoundsOf(layer.Features[0].Geom)
	assert.InDelta(t, 0, b.MinX, 1e-7)
	assert.InDelta(t, 0, b.MinY, 1e-7)
	assert.InDelta(t, 1, b.MaxX, 1e-6)
	assert.InDelta(t, 1, b.MaxY, 1e-6)
	assert.InDelta(t, 1, layer.Extent.MaxX, 1e-6)
}

// utmBlock is a 100 km square in NAD83 / UTM zone 18N.
const utmBlock = "POLYGON ((450000 4400000, 550000 4400000, 550000 4500000, 450000 4500000, 450000 4400000))"

func TestReprojectEsriUTM(t *testing.T) {
	ctx, _ := testContext(t)
	layer := polygonLayer(t, "utm", utmBlock)
	layer.Projection = esriUTM

	_, err := Reproject(ctx, layer, 7)
	require.NoError(t, err)
	assert.Equal(t, WGS84PRJ, layer.Projection)

	b := utils.BoundsOf(layer.Features[0].Geom)
	assert.InDelta(t, -75.5914, b.MinX, 1e-3)
	assert.InDelta(t, -74.4086, b.MaxX, 1e-3)
	assert.InDelta(t, 39.7484, b.MinY, 1e-3)
	assert.InDelta(t, 40.6493, b.MaxY, 1e-3)
}

func TestReprojectOutOfDomain(t *testing.T) {
	ctx, _ := testContext(t)
	layer := polygonLayer(t, "utm",
		utmBlock,
		"POLYGON ((1e9 0, 1.1e9 0, 1.1e9 1e5, 1e9 1e5, 1e9 0))",
	)
	layer.Projection = esriUTM
	before := layer.Features[1].Geom.Area()

	_, err := Reproject(ctx, layer, 7)
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.ErrCodeInvalidInput))
	assert.Contains(t, err.Error(), "cannot be projected to WGS84")
	assert.NotEqual(t, WGS84PRJ, layer.Projection)
	assert.Equal(t, before, layer.Features[1].Geom.Area())
}

func TestReprojectWithoutProjection(t *testing.T) {
	ctx, _ := testContext(t)
	layer := polygonLayer(t, "bare", "POLYGON ((0 0, 1 0, 1 1, 0 0))")
	layer.Projection = ""

	_, err := Reproject(ctx, layer, 7)
	assert.True(t, utils.IsCode(err, utils.ErrCodeMissingProjection))
}
