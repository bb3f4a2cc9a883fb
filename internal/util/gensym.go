package util

import (
	"fmt"
	"sync"
)

// Gensym is the single mutex-guarded counter named in spec.md §5 ("the
// gensym counter ... [is a field] of a single compilation context").
// hir.Context carries one as its Gensym field; no code in this repository
// calls Next, and the async splitter's tempification
// (internal/mir/asyncsplit) numbers its temporaries with its own
// per-function counter.
type Gensym struct {
	mu  sync.Mutex
	ctr int
}

// Next returns the next name with the given prefix, e.g. Next("$") -> "$0".
func (g *Gensym) Next(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := g.ctr
	g.ctr++
	return fmt.Sprintf("%s%d", prefix, n)
}
