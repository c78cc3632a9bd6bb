package mandel

import "fmt"

// AtlasTile is one cell of the atlas grid.
type AtlasTile struct {
	GridX, GridY uint32
	Rect         Rect[float32]
}

func (t AtlasTile) String() string {
	return fmt.Sprintf("(%d,%d) %s", t.GridX, t.GridY, t.Rect)
}

// Partition splits domain into a grid x grid atlas.
//
// Neighbouring tiles share their boundary values exactly and the outer
// edges of the atlas are exactly the edges of domain. Callers must not rely
// on the order of the returned tiles.
func Partition(domain Rect[float32], grid uint32) ([]AtlasTile, error) {
	if grid == 0 {
		return nil, ErrZeroGrid
	}
	if err := domain.Validate(); err != nil {
		return nil, err
	}
	xEdge, err := gridEdges(domain.X, grid)
	if err != nil {
		return nil, fmt.Errorf("x axis: %w", err)
	}
	yEdge, err := gridEdges(domain.Y, grid)
	if err != nil {
		return nil, fmt.Errorf("y axis: %w", err)
	}

	tiles := make([]AtlasTile, 0, int(grid)*int(grid))
	for i := range grid {
		for j := range grid {
			tiles = append(tiles, AtlasTile{
				GridX: i,
				GridY: j,
				Rect: Rect[float32]{
					X: Range[float32]{Min: xEdge[i], Max: xEdge[i+1]},
					Y: Range[float32]{Min: yEdge[j], Max: yEdge[j+1]},
				},
			})
		}
	}
	return tiles, nil
}

// gridEdges returns the grid+1 cell boundaries along r.
// The last edge is pinned to r.Max: A*grid+B can miss it by an ulp.
func gridEdges(r Range[float32], grid uint32) ([]float32, error) {
	m, err := NewAffine(0, float32(grid), r.Min, r.Max)
	if err != nil {
		return nil, err
	}
	edges := make([]float32, grid+1)
	for i := range grid {
		edges[i] = m.Map(float32(i))
	}
	edges[grid] = r.Max
	return edges, nil
}
