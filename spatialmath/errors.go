package spatialmath

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

func newBadAABBError(minPt, maxPt r3.Vector) error {
	return errors.Errorf("invalid bounding box: min corner %v exceeds max corner %v", minPt, maxPt)
}
