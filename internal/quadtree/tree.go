package quadtree

import (
	"sort"

	"github.com/ironsheep/quadtree-image-tools/internal/imaging"
)

// Tree is a quadtree built over a whole square buffer at one fixed threshold.
//
// A Tree is immutable after New returns; a different threshold needs a new
// Tree. It is safe to call every method concurrently.
type Tree struct {
	root      *Node
	size      int
	threshold float64
}

// New decomposes buf at threshold.
//
// The root covers (0, 0, buf.Width()); callers are expected to pass square
// buffers. A threshold of 0 splits every non-uniform region down to single
// pixels; larger thresholds give coarser trees.
func New(buf *imaging.Buffer, threshold float64) *Tree {
	size := buf.Width()
	return &Tree{
		root:      newNode(buf, 0, 0, size, threshold),
		size:      size,
		threshold: threshold,
	}
}

// Root returns the root node.
func (t *Tree) Root() *Node { return t.root }

// Size returns the side length of the decomposed region.
func (t *Tree) Size() int { return t.size }

// Threshold returns the mean-error split threshold the tree was built with.
func (t *Tree) Threshold() float64 { return t.threshold }

// CountLeaves returns the number of leaves.
func (t *Tree) CountLeaves() int {
	if t.root == nil {
		return 0
	}
	return t.root.CountLeaves()
}

// Depth returns the number of levels below the root.
func (t *Tree) Depth() int {
	if t.root == nil {
		return 0
	}
	return t.root.Depth()
}

// Render returns a fresh buffer with every leaf painted in its mean color.
// This is the compressed image.
func (t *Tree) Render() *imaging.Buffer {
	out := imaging.NewBuffer(t.size, t.size)
	if t.root != nil {
		t.root.Fill(out)
	}
	return out
}

// DrawOutline overlays white leaf borders onto out, typically a buffer
// produced by Render or EdgeDetect.
func (t *Tree) DrawOutline(out *imaging.Buffer) {
	t.DrawOutlineColor(out, imaging.White)
}

// DrawOutlineColor overlays leaf borders in c onto out.
func (t *Tree) DrawOutlineColor(out *imaging.Buffer, c imaging.Color) {
	if t.root != nil {
		t.root.DrawOutline(out, c)
	}
}

// EdgeDetect returns a fresh buffer holding the structure-aware edge response
// of in: leaves of at most EdgeSizeCutoff pixels are convolved with the edge
// kernel and larger leaves are black.
func (t *Tree) EdgeDetect(in *imaging.Buffer) *imaging.Buffer {
	size := in.Width()
	out := imaging.NewBuffer(size, size)
	if t.root != nil {
		t.root.EdgeDetect(in, out, EdgeSizeCutoff)
	}
	return out
}

// Stats summarizes the leaves of a tree.
type Stats struct {
	// Leaves is the total leaf count.
	Leaves int `json:"leaves"`

	// Depth is the number of levels below the root.
	Depth int `json:"depth"`

	// MeanError is the area-weighted average of the leaves' mean errors,
	// i.e. the mean squared color error of the rendered image.
	MeanError float64 `json:"mean_error"`

	// LeafSizes maps a leaf side length to the number of leaves of that size.
	LeafSizes map[int]int `json:"leaf_sizes"`
}

// Stats walks the tree and summarizes its leaves.
func (t *Tree) Stats() Stats {
	st := Stats{LeafSizes: make(map[int]int)}
	if t.root == nil {
		return st
	}

	var weighted float64
	var area int
	t.root.Walk(func(n *Node, depth int) bool {
		if depth > st.Depth {
			st.Depth = depth
		}
		if !n.IsLeaf() {
			return true
		}
		st.Leaves++
		st.LeafSizes[n.size]++
		a := n.size * n.size
		weighted += n.meanError * float64(a)
		area += a
		return true
	})
	if area > 0 {
		st.MeanError = weighted / float64(area)
	}
	return st
}

// ColorShare is a leaf color and the fraction of leaf area it covers.
type ColorShare struct {
	Hex        string        `json:"hex"`        // Hex color "#rrggbb"
	Color      imaging.Color `json:"rgb"`        // RGB components
	Percentage float64       `json:"percentage"` // Share of leaf area (0-100)
}

// DominantColors returns up to count leaf mean colors ordered by the area
// they cover, largest first. Ties are broken by hex value for stable output.
func (t *Tree) DominantColors(count int) []ColorShare {
	if t.root == nil || count <= 0 {
		return nil
	}

	areas := make(map[imaging.Color]int)
	total := 0
	t.root.Walk(func(n *Node, _ int) bool {
		if n.IsLeaf() {
			a := n.size * n.size
			areas[n.mean] += a
			total += a
		}
		return true
	})
	if total == 0 {
		return nil
	}

	shares := make([]ColorShare, 0, len(areas))
	for c, a := range areas {
		shares = append(shares, ColorShare{
			Hex:        c.Hex(),
			Color:      c,
			Percentage: float64(a) / float64(total) * 100,
		})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Percentage != shares[j].Percentage {
			return shares[i].Percentage > shares[j].Percentage
		}
		return shares[i].Hex < shares[j].Hex
	})

	if len(shares) > count {
		shares = shares[:count]
	}
	return shares
}
