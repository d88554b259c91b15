// Package delaunay implements 2d Delaunay triangulation with the
// Bowyer-Watson algorithm.
package delaunay

import (
	"math"

	"github.com/pkg/errors"
)

// Triangulation is a triangulation of a planar point set. Triangles hold
// zero-based indices into the input points, wound counterclockwise.
type Triangulation struct {
	Points    []Point
	Triangles [][3]int
}

// triangle is a working triangle with its precomputed circumcircle.
type triangle struct {
	v      [3]int
	center Point
	rSq    float64
}

func makeTriangle(pts []Point, a, b, c int) (triangle, bool) {
	pa, pb, pc := pts[a], pts[b], pts[c]
	d := 2 * (pa.X*(pb.Y-pc.Y) + pb.X*(pc.Y-pa.Y) + pc.X*(pa.Y-pb.Y))
	if d == 0 {
		return triangle{}, false
	}
	aSq := pa.X*pa.X + pa.Y*pa.Y
	bSq := pb.X*pb.X + pb.Y*pb.Y
	cSq := pc.X*pc.X + pc.Y*pc.Y
	center := Point{
		X: (aSq*(pb.Y-pc.Y) + bSq*(pc.Y-pa.Y) + cSq*(pa.Y-pb.Y)) / d,
		Y: (aSq*(pc.X-pb.X) + bSq*(pa.X-pc.X) + cSq*(pb.X-pa.X)) / d,
	}
	return triangle{
		v:      [3]int{a, b, c},
		center: center,
		rSq:    center.squaredDistance(pa),
	}, true
}

type edge [2]int

func makeEdge(a, b int) edge {
	if a > b {
		a, b = b, a
	}
	return edge{a, b}
}

// Triangulate computes the Delaunay triangulation of points. It needs at
// least three points that are not all collinear. Points are inserted in
// input order, so the result is deterministic.
func Triangulate(points []Point) (*Triangulation, error) {
	n := len(points)
	if n < 3 {
		return nil, errors.Errorf("cannot triangulate %d points, need at least 3", n)
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range points {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	span := math.Max(maxX-minX, maxY-minY)
	if span == 0 {
		span = 1
	}
	mid := Point{X: (minX + maxX) / 2, Y: (minY + maxY) / 2}

	// Three synthetic vertices at indices n, n+1, n+2 span a triangle
	// containing every input point.
	pts := make([]Point, n, n+3)
	copy(pts, points)
	pts = append(pts,
		Point{X: mid.X - 20*span, Y: mid.Y - span},
		Point{X: mid.X, Y: mid.Y + 20*span},
		Point{X: mid.X + 20*span, Y: mid.Y - span},
	)
	super, ok := makeTriangle(pts, n, n+1, n+2)
	if !ok {
		return nil, errors.New("could not build a containing triangle")
	}

	tris := []triangle{super}
	for i := 0; i < n; i++ {
		p := pts[i]
		// Triangles whose circumcircle strictly contains the new point
		// are removed; the hole boundary is re-joined to the point. The
		// boundary keeps first-seen edge order so the output does not
		// depend on map iteration.
		good := make([]triangle, 0, len(tris))
		edgeCount := map[edge]int{}
		var boundary []edge
		for _, tr := range tris {
			if p.squaredDistance(tr.center) < tr.rSq {
				for k := 0; k < 3; k++ {
					e := makeEdge(tr.v[k], tr.v[(k+1)%3])
					if edgeCount[e] == 0 {
						boundary = append(boundary, e)
					}
					edgeCount[e]++
				}
			} else {
				good = append(good, tr)
			}
		}
		for _, e := range boundary {
			if edgeCount[e] != 1 {
				continue
			}
			if nt, ok := makeTriangle(pts, e[0], e[1], i); ok {
				good = append(good, nt)
			}
		}
		tris = good
	}

	var faces [][3]int
	for _, tr := range tris {
		if tr.v[0] >= n || tr.v[1] >= n || tr.v[2] >= n {
			continue
		}
		f := tr.v
		a, b, c := pts[f[0]], pts[f[1]], pts[f[2]]
		if b.sub(a).cross(c.sub(a)) < 0 {
			f[1], f[2] = f[2], f[1]
		}
		faces = append(faces, f)
	}
	if len(faces) == 0 {
		return nil, errors.New("points are collinear, cannot triangulate")
	}
	return &Triangulation{Points: points, Triangles: faces}, nil
}
