package quadtree

import (
	"image"
	"sync"

	"github.com/ironsheep/quadtree-image-tools/internal/imaging"
)

// Quadrant indexes a node's children.
type Quadrant int

const (
	NW Quadrant = iota
	NE
	SW
	SE
)

// parallelSize is the smallest region whose four children are built on
// separate goroutines. Smaller subtrees are cheaper to build inline.
const parallelSize = 128

// Node is one square region (x, y, size) of a buffer together with its mean
// color and mean squared error.
//
// A node is either a leaf (no children) or internal (exactly four children);
// children is nil or a full array, so a partial split cannot be represented.
// Each node exclusively owns its children.
type Node struct {
	x, y, size int
	mean       imaging.Color
	meanError  float64
	children   *[4]*Node
}

// newNode builds the subtree rooted at (x, y, size).
//
// The mean color is computed first, then the mean error against it, then the
// split decision: a node splits iff size > 1 and its mean error exceeds
// threshold. Children cover quadrants of size/2, so for odd sizes the last
// row and column are not covered by any child.
func newNode(buf *imaging.Buffer, x, y, size int, threshold float64) *Node {
	n := &Node{x: x, y: y, size: size}
	n.mean = meanColor(buf, x, y, size)
	n.meanError = meanError(buf, x, y, size, n.mean)

	if size <= 1 || n.meanError <= threshold {
		return n
	}

	half := size / 2
	origins := [4][2]int{
		NW: {x, y},
		NE: {x + half, y},
		SW: {x, y + half},
		SE: {x + half, y + half},
	}

	var children [4]*Node
	if size >= parallelSize {
		var wg sync.WaitGroup
		for i, o := range origins {
			wg.Add(1)
			go func(i, cx, cy int) {
				defer wg.Done()
				children[i] = newNode(buf, cx, cy, half, threshold)
			}(i, o[0], o[1])
		}
		wg.Wait()
	} else {
		for i, o := range origins {
			children[i] = newNode(buf, o[0], o[1], half, threshold)
		}
	}
	n.children = &children
	return n
}

// meanColor averages each channel over the region with truncating division.
// An empty region yields black.
func meanColor(buf *imaging.Buffer, x, y, size int) imaging.Color {
	if size <= 0 {
		return imaging.Black
	}
	var sumR, sumG, sumB int64
	for py := y; py < y+size; py++ {
		for px := x; px < x+size; px++ {
			c := buf.Get(px, py)
			sumR += int64(c.R)
			sumG += int64(c.G)
			sumB += int64(c.B)
		}
	}
	n := int64(size) * int64(size)
	return imaging.NewColor(int(sumR/n), int(sumG/n), int(sumB/n))
}

// meanError averages the squared distance of every pixel to mean.
func meanError(buf *imaging.Buffer, x, y, size int, mean imaging.Color) float64 {
	if size <= 0 {
		return 0
	}
	var sum int64
	for py := y; py < y+size; py++ {
		for px := x; px < x+size; px++ {
			sum += int64(mean.SquaredDistance(buf.Get(px, py)))
		}
	}
	return float64(sum) / (float64(size) * float64(size))
}

// X returns the left edge of the region.
func (n *Node) X() int { return n.x }

// Y returns the top edge of the region.
func (n *Node) Y() int { return n.y }

// Size returns the side length of the region.
func (n *Node) Size() int { return n.size }

// Bounds returns the region as a rectangle.
func (n *Node) Bounds() image.Rectangle {
	return image.Rect(n.x, n.y, n.x+n.size, n.y+n.size)
}

// Mean returns the region's mean color.
func (n *Node) Mean() imaging.Color { return n.mean }

// MeanError returns the average squared distance between the region's pixels
// and its mean color.
func (n *Node) MeanError() float64 { return n.meanError }

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return n.children == nil }

// Child returns the child in quadrant q, or nil for a leaf.
func (n *Node) Child(q Quadrant) *Node {
	if n.children == nil {
		return nil
	}
	return n.children[q]
}

// CountLeaves returns the number of leaves in the subtree.
func (n *Node) CountLeaves() int {
	if n.children == nil {
		return 1
	}
	count := 0
	for _, c := range n.children {
		if c != nil {
			count += c.CountLeaves()
		}
	}
	return count
}

// Depth returns the number of levels below this node (0 for a leaf).
func (n *Node) Depth() int {
	if n.children == nil {
		return 0
	}
	deepest := 0
	for _, c := range n.children {
		if d := c.Depth(); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}

// Walk visits the subtree in pre-order, passing each node and its depth
// relative to n. Returning false from fn skips that node's children.
func (n *Node) Walk(fn func(node *Node, depth int) bool) {
	n.walk(fn, 0)
}

func (n *Node) walk(fn func(*Node, int) bool, depth int) {
	if !fn(n, depth) || n.children == nil {
		return
	}
	for _, c := range n.children {
		c.walk(fn, depth+1)
	}
}

// Fill paints every leaf region in out with the leaf's mean color.
func (n *Node) Fill(out *imaging.Buffer) {
	if n.children == nil {
		out.Fill(n.x, n.y, n.size, n.size, n.mean)
		return
	}
	for _, c := range n.children {
		c.Fill(out)
	}
}

// DrawOutline paints the border pixels of every leaf region in out with c.
// Pixels outside out are clipped.
func (n *Node) DrawOutline(out *imaging.Buffer, c imaging.Color) {
	if n.children != nil {
		for _, child := range n.children {
			child.DrawOutline(out, c)
		}
		return
	}

	last := n.size - 1
	for i := 0; i < n.size; i++ {
		out.Set(n.x+i, n.y, c)
		out.Set(n.x+i, n.y+last, c)
		out.Set(n.x, n.y+i, c)
		out.Set(n.x+last, n.y+i, c)
	}
}

// EdgeDetect writes the structure-aware edge response of the subtree into out.
//
// Leaves no larger than sizeCutoff are convolved pixel by pixel with the edge
// kernel, reading neighbors from in. Larger leaves are uniform enough to have
// no edges and are painted black.
func (n *Node) EdgeDetect(in, out *imaging.Buffer, sizeCutoff int) {
	if n.children != nil {
		for _, c := range n.children {
			c.EdgeDetect(in, out, sizeCutoff)
		}
		return
	}

	if n.size > sizeCutoff {
		out.Fill(n.x, n.y, n.size, n.size, imaging.Black)
		return
	}
	for py := n.y; py < n.y+n.size; py++ {
		for px := n.x; px < n.x+n.size; px++ {
			out.Set(px, py, convolvePixel(in, px, py))
		}
	}
}
