package eikonal

// cellEntry is a tentative distance pushed into the wavefront queue.
// Duplicate entries for a cell are allowed; the solver's visited flags
// skip stale ones on pop (lazy deletion).
type cellEntry struct {
	index int32
	dist  float32
}

// cellQueue is a binary min-heap keyed on tentative distance,
// implementing container/heap.
type cellQueue []cellEntry

func (q cellQueue) Len() int            { return len(q) }
func (q cellQueue) Less(i, j int) bool  { return q[i].dist < q[j].dist }
func (q cellQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *cellQueue) Push(x interface{}) { *q = append(*q, x.(cellEntry)) }

func (q *cellQueue) Pop() interface{} {
	old := *q
	n := len(old)
	e := old[n-1]
	*q = old[:n-1]
	return e
}
