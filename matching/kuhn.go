// Package matching computes maximum-cardinality matchings on unweighted
// bipartite graphs. It knows nothing about prices or valuations.
package matching

// Unmatched marks a vertex with no partner in LeftToRight and RightToLeft.
const Unmatched = -1

// Graph is a bipartite graph with Left vertices 0..Left-1 and Right vertices
// 0..Right-1. Adj[u] lists the right neighbors of left vertex u in the order
// they should be tried.
type Graph struct {
	Left  int
	Right int
	Adj   [][]int
}

// Result holds a maximum matching.
type Result struct {
	LeftToRight []int
	RightToLeft []int
	Size        int
}

// IsLeftPerfect reports whether every left vertex is matched.
func (r *Result) IsLeftPerfect() bool {
	return r.Size == len(r.LeftToRight)
}

// UnmatchedLeft returns the unmatched left vertices in ascending order.
func (r *Result) UnmatchedLeft() []int {
	unmatched := make([]int, 0, len(r.LeftToRight)-r.Size)
	for left, right := range r.LeftToRight {
		if right == Unmatched {
			unmatched = append(unmatched, left)
		}
	}
	return unmatched
}

// frame is one level of the explicit DFS stack.
type frame struct {
	left    int
	next    int  // next index into adj[left] to try
	via     int  // right vertex used to descend from this frame
	scanned bool // adj[left] was checked for a free right vertex
}

type kuhn struct {
	adj         [][]int
	leftToRight []int
	rightToLeft []int
	seenMark    []int // seenMark[r] == stamp when r was visited in the current search
	stamp       int
	stack       []frame
}

// Maximum computes a maximum matching of g with Kuhn's augmenting-path
// algorithm. Left vertices are processed in index order and edges in
// adjacency order, so identical graphs always produce identical matchings.
// Edges pointing outside [0, g.Right) are ignored.
func Maximum(g Graph) *Result {
	k := &kuhn{
		adj:         g.Adj,
		leftToRight: make([]int, g.Left),
		rightToLeft: make([]int, g.Right),
		seenMark:    make([]int, g.Right),
	}
	for left := range k.leftToRight {
		k.leftToRight[left] = Unmatched
	}
	for right := range k.rightToLeft {
		k.rightToLeft[right] = Unmatched
	}

	size := 0
	for left := 0; left < g.Left; left++ {
		if left >= len(g.Adj) {
			break
		}
		k.stamp++
		if k.augment(left) {
			size++
		}
	}

	return &Result{
		LeftToRight: k.leftToRight,
		RightToLeft: k.rightToLeft,
		Size:        size,
	}
}

// augment searches for an augmenting path starting at the free left vertex
// root and flips it if one is found. The search is an iterative DFS; a right
// vertex visited once in a search is never retried in the same search. Each
// left vertex first takes its earliest free neighbor, so existing pairs are
// only moved when no free right vertex is reachable directly.
func (k *kuhn) augment(root int) bool {
	stack := append(k.stack[:0], frame{left: root, via: Unmatched})
	defer func() { k.stack = stack[:0] }()

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		adj := k.adj[top.left]
		if !top.scanned {
			top.scanned = true
			if right := k.firstFree(adj); right != Unmatched {
				k.seenMark[right] = k.stamp
				top.via = right
				k.flip(stack)
				return true
			}
		}
		if top.next >= len(adj) {
			stack = stack[:len(stack)-1]
			continue
		}

		right := adj[top.next]
		top.next++
		if right < 0 || right >= len(k.rightToLeft) || k.seenMark[right] == k.stamp {
			continue
		}
		k.seenMark[right] = k.stamp
		top.via = right

		owner := k.rightToLeft[right]
		if owner == Unmatched {
			k.flip(stack)
			return true
		}
		stack = append(stack, frame{left: owner, via: Unmatched})
	}
	return false
}

// firstFree returns the first unvisited, unmatched right vertex in adj.
func (k *kuhn) firstFree(adj []int) int {
	for _, right := range adj {
		if right < 0 || right >= len(k.rightToLeft) || k.seenMark[right] == k.stamp {
			continue
		}
		if k.rightToLeft[right] == Unmatched {
			return right
		}
	}
	return Unmatched
}

// flip applies the augmenting path recorded in stack.
func (k *kuhn) flip(stack []frame) {
	for i := len(stack) - 1; i >= 0; i-- {
		f := stack[i]
		k.rightToLeft[f.via] = f.left
		k.leftToRight[f.left] = f.via
	}
}
