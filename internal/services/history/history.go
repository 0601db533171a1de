// Package history keeps a bounded window of recent prices per asset.
package history

import "github.com/shopspring/decimal"

// PriceHistory holds one FIFO window per asset.
// It is owned by the trading loop and is not safe for concurrent use.
type PriceHistory struct {
	capacity int
	series   map[string]*ring
}

type ring struct {
	buf   []decimal.Decimal
	start int
	size  int
}

// New creates a history retaining capacity points per asset.
func New(capacity int) *PriceHistory {
	if capacity < 1 {
		capacity = 1
	}
	return &PriceHistory{
		capacity: capacity,
		series:   make(map[string]*ring),
	}
}

// Capacity returns the lookback length.
func (h *PriceHistory) Capacity() int {
	return h.capacity
}

// Update appends price, evicting the oldest point once the window is full.
func (h *PriceHistory) Update(asset string, price decimal.Decimal) {
	r, ok := h.series[asset]
	if !ok {
		r = &ring{buf: make([]decimal.Decimal, h.capacity)}
		h.series[asset] = r
	}

	if r.size < h.capacity {
		r.buf[(r.start+r.size)%h.capacity] = price
		r.size++
		return
	}
	r.buf[r.start] = price
	r.start = (r.start + 1) % h.capacity
}

// Len returns the number of points held for asset.
func (h *PriceHistory) Len(asset string) int {
	if r, ok := h.series[asset]; ok {
		return r.size
	}
	return 0
}

// Ready reports whether the window for asset is full.
func (h *PriceHistory) Ready(asset string) bool {
	return h.Len(asset) == h.capacity
}

// Prices returns a copy of the window, oldest first.
func (h *PriceHistory) Prices(asset string) []decimal.Decimal {
	r, ok := h.series[asset]
	if !ok {
		return nil
	}
	out := make([]decimal.Decimal, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.start+i)%h.capacity]
	}
	return out
}

// Latest returns the most recent price.
func (h *PriceHistory) Latest(asset string) (decimal.Decimal, bool) {
	r, ok := h.series[asset]
	if !ok || r.size == 0 {
		return decimal.Decimal{}, false
	}
	return r.buf[(r.start+r.size-1)%h.capacity], true
}
