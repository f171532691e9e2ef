package shardstate

import "container/heap"

// reportHeap orders Reports by priority (higher first) and, within a
// priority, by submission order (lower seq first) — container/heap's
// usual pattern, the same one torua's scheduler and warren's task queue
// both build a priority dispatch on top of.
type reportHeap []*Report

func (h reportHeap) Len() int { return len(h) }

func (h reportHeap) Less(i, j int) bool {
	pi, pj := h[i].Kind.priority(), h[j].Kind.priority()
	if pi != pj {
		return pi > pj
	}
	return h[i].seq < h[j].seq
}

func (h reportHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *reportHeap) Push(x any) { *h = append(*h, x.(*Report)) }

func (h *reportHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

var _ heap.Interface = (*reportHeap)(nil)
