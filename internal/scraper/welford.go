package scraper

// welford accumulates a running mean and variance with Welford's one-pass
// update. Naive sum-of-squares cancels catastrophically over large row
// counts; this formulation stays stable regardless of magnitude.
type welford struct {
	n    int64
	mean float64
	m2   float64
}

func (w *welford) add(x float64) {
	w.n++
	d := x - w.mean
	w.mean += d / float64(w.n)
	w.m2 += d * (x - w.mean)
}

// variance returns the population variance (divide by n, the convention the
// exporter documents and pins in tests). Zero observations yield zero.
func (w *welford) variance() float64 {
	if w.n == 0 {
		return 0
	}
	return w.m2 / float64(w.n)
}
