package warehouse

import "container/heap"

// Batch is a priced quantity of one product supplied by one partner.
// Only the remaining amount ever changes.
type Batch struct {
	product *Product
	partner *Partner
	price   Money
	amount  int

	// seq orders batches with equal prices by arrival.
	seq uint64
}

func (b *Batch) Product() *Product { return b.product }
func (b *Batch) Partner() *Partner { return b.partner }
func (b *Batch) Price() Money      { return b.price }
func (b *Batch) Amount() int       { return b.amount }

// =============================================================================
// PRICE HEAP
// =============================================================================

// batchHeap is a min-heap on (price, seq). The cheapest batch is at index 0.
type batchHeap []*Batch

func (h batchHeap) Len() int { return len(h) }

func (h batchHeap) Less(i, j int) bool {
	if c := h[i].price.Cmp(h[j].price); c != 0 {
		return c < 0
	}
	return h[i].seq < h[j].seq
}

func (h batchHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *batchHeap) Push(x any) { *h = append(*h, x.(*Batch)) }

func (h *batchHeap) Pop() any {
	old := *h
	n := len(old)
	b := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return b
}

func (h *batchHeap) push(b *Batch) { heap.Push(h, b) }

func (h *batchHeap) pop() *Batch { return heap.Pop(h).(*Batch) }

func (h batchHeap) peek() (*Batch, bool) {
	if len(h) == 0 {
		return nil, false
	}
	return h[0], true
}
