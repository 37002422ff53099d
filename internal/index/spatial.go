package index

import (
	"github.com/dhconnelly/rtreego"
)

// epsilon gives every indexed point a minuscule, non-zero extent —
// rtreego's Rect requires positive side lengths, and a true point has
// none. Correctness is unaffected: 1e-9 degrees is sub-millimeter.
const epsilon = 1e-9

// cityPoint adapts a single city's coordinates to rtreego.Spatial.
type cityPoint struct {
	id   int32
	rect *rtreego.Rect
}

func (p *cityPoint) Bounds() *rtreego.Rect { return p.rect }

// spatialIndex is the optional R-tree-equivalent spec.md §3 calls
// spatial_index, keyed on (lat,lng) and queried by rectangle. Grounded on
// the 1F47E-geo-index-rtree manifest's dhconnelly/rtreego dependency.
type spatialIndex struct {
	tree *rtreego.Rtree
}

func newSpatialIndex() *spatialIndex {
	return &spatialIndex{tree: rtreego.NewTree(2, 25, 50)}
}

func (s *spatialIndex) insert(id int32, lat, lng float64) {
	rect, err := rtreego.NewRect(rtreego.Point{lat, lng}, []float64{epsilon, epsilon})
	if err != nil {
		return
	}
	s.tree.Insert(&cityPoint{id: id, rect: rect})
}

// searchRect returns every id whose point falls within
// [minLat,maxLat] x [minLng,maxLng], the bounding rectangle GeoEngine
// computes per spec.md §4.E step 1/2.
func (s *spatialIndex) searchRect(minLat, maxLat, minLng, maxLng float64) []int32 {
	rect, err := rtreego.NewRect(
		rtreego.Point{minLat, minLng},
		[]float64{maxLat - minLat + epsilon, maxLng - minLng + epsilon},
	)
	if err != nil {
		return nil
	}
	results := s.tree.SearchIntersect(rect)
	out := make([]int32, 0, len(results))
	for _, r := range results {
		if cp, ok := r.(*cityPoint); ok {
			out = append(out, cp.id)
		}
	}
	return out
}
