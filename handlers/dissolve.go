package handlers

import (
	"github.com/twpayne/go-geos"

	"github.com/bsaid97/go-boundary-prep/utils"
)

// CascadedUnion unions geometries pairwise. Nil entries are skipped and the
// inputs are left untouched.
func CascadedUnion(geometries []*geos.Geom) (*geos.Geom, error) {
	live := make([]*geos.Geom, 0, len(geometries))
	for _, g := range geometries {
		if g != nil && !g.IsEmpty() {
			live = append(live, g)
		}
	}
	if len(live) == 0 {
		return nil, nil
	}
	return cascadedUnion(live), nil
}

func cascadedUnion(geometries []*geos.Geom) *geos.Geom {
	// Base case: a copy, so the caller may destroy it
	if len(geometries) == 1 {
		return geometries[0].Clone()
	}

	// Divide the array into two halves
	mid := len(geometries) / 2
	left := cascadedUnion(geometries[:mid])
	right := cascadedUnion(geometries[mid:])

	// Union the results of the left and right halves
	result := left.Union(right)

	// Clean up to free memory
	left.Destroy()
	right.Destroy()

	return result
}

// Gaps returns the areas enclosed by the layer but covered by no feature:
// the holes of the dissolved coverage.
func Gaps(geometries []*geos.Geom) ([]*geos.Geom, error) {
	dissolved, err := CascadedUnion(geometries)
	if err != nil || dissolved == nil {
		return nil, err
	}
	holes, err := utils.HolesAsPolygons(dissolved)
	dissolved.Destroy()
	if err != nil {
		return nil, utils.WrapError(utils.ErrCodeInternal, err, "failed to extract gaps")
	}
	return holes, nil
}
