package mesh

import (
	"fmt"

	"github.com/rclancey/earcut"

	"github.com/irfansharif/canopy/internal/geom"
)

// earClip triangulates a simple polygon using the earcut algorithm. It returns
// a slice of triangles, each represented as a [3]geom.Point.
func earClip(polygonPoints []geom.Point) ([][3]geom.Point, error) {
	if len(polygonPoints) < 3 {
		return nil, fmt.Errorf("%w: degenerate polygon (%d vertices < 3)", ErrBadOutline, len(polygonPoints))
	}

	// Format: [x0, y0, x1, y1, ..., xn, yn]
	vertexCoords := make([]float64, len(polygonPoints)*2)
	for i, point := range polygonPoints {
		vertexCoords[i*2] = point.X
		vertexCoords[i*2+1] = point.Y
	}

	triangleIndices, err := earcut.Earcut(vertexCoords, nil /* holeIndices */, 2 /* dim */)
	if err != nil {
		return nil, fmt.Errorf("%w: triangulation failed for %d-vertex polygon: %v", ErrBadOutline, len(polygonPoints), err)
	}
	if len(triangleIndices) == 0 || len(triangleIndices)%3 != 0 {
		return nil, fmt.Errorf("%w: invalid triangle index count %d", ErrBadOutline, len(triangleIndices))
	}

	triangleCount := len(triangleIndices) / 3
	triangles := make([][3]geom.Point, triangleCount)
	for i := 0; i < triangleCount; i++ {
		for v := 0; v < 3; v++ {
			idx := triangleIndices[i*3+v]
			triangles[i][v] = geom.MakePoint(vertexCoords[idx*2], vertexCoords[idx*2+1])
		}
	}
	return triangles, nil
}
