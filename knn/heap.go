package knn

import "container/heap"

// Compile time check to ensure candidateHeap satisfies the heap interface.
var _ heap.Interface = (*candidateHeap)(nil)

// candidate is one row under consideration during a search.
type candidate struct {
	row  int32
	dist float32
}

// candidateHeap is a bounded max-heap keyed by distance: the root is always
// the worst candidate seen so far, so a closer row can replace it in O(log k).
// Equal distances rank the larger row as worse, keeping the retained set
// deterministic at the k boundary.
type candidateHeap struct {
	items []candidate
}

func (h *candidateHeap) Len() int { return len(h.items) }

func (h *candidateHeap) Less(i, j int) bool {
	if h.items[i].dist != h.items[j].dist {
		return h.items[i].dist > h.items[j].dist
	}
	return h.items[i].row > h.items[j].row
}

func (h *candidateHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
}

func (h *candidateHeap) Push(x any) {
	h.items = append(h.items, x.(candidate))
}

func (h *candidateHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}
