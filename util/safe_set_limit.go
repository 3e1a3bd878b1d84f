package util

import "golang.org/x/sync/errgroup"

// SafeSetLimit sets the concurrency limit of g. A limit of 0 would block every Go call forever,
// so it panics instead. Negative limits remove the bound.
func SafeSetLimit(g *errgroup.Group, limit int) {
	if limit == 0 {
		panic("limit cannot be 0")
	}

	g.SetLimit(limit)
}
