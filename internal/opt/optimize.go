// Package opt runs the per-function optimization loop.
//
// One round applies, in order: CPU accounting, type inference, branch
// inlining, constant folding, dead-code pruning, unreachable-block pruning
// and block merging. Rounds repeat until a round returns a function
// structurally equal to its input. Every pass leaves its input untouched and
// returns either the same pointer or a modified copy.
package opt

import (
	"context"
	"fmt"
	"strconv"

	"moonc/internal/analysis"
	"moonc/internal/config"
	"moonc/internal/mir"
	"moonc/internal/trace"
)

// Stats describes one Optimize call.
type Stats struct {
	Rounds int
	// Capped is set when the round limit stopped the loop before a fixed point.
	Capped bool
	Before int
	After  int
}

// Optimize runs rounds over f until nothing changes or opts.Rounds() is hit.
// Hitting the cap is reported in Stats and traced, it is not an error.
func Optimize(ctx context.Context, f *mir.Func, opts config.Options) (*mir.Func, Stats, error) {
	tr := trace.FromContext(ctx)
	span := trace.Begin(tr, trace.ScopeFunc, "optimize "+f.ID.String(), trace.CurrentSpan(ctx).SpanID)

	stats := Stats{Before: f.NumInstrs()}
	cur := f
	converged := false
	for stats.Rounds < opts.Rounds() {
		if err := ctx.Err(); err != nil {
			span.End("canceled")
			return nil, stats, err
		}
		rs := trace.Begin(tr, trace.ScopeRound, "round "+strconv.Itoa(stats.Rounds+1), span.ID())
		next, err := Round(cur, opts)
		stats.Rounds++
		if err != nil {
			rs.End(err.Error())
			span.End("failed")
			return nil, stats, fmt.Errorf("opt: %s: round %d: %w", f.ID, stats.Rounds, err)
		}
		same := mir.Equal(next, cur)
		rs.WithExtra("instrs", strconv.Itoa(next.NumInstrs())).End("")
		cur = next
		if same {
			converged = true
			break
		}
	}
	if !converged {
		stats.Capped = true
		trace.Point(tr, trace.ScopeFunc, "optimize "+f.ID.String(),
			fmt.Sprintf("round limit %d reached", opts.Rounds()), span.ID())
	}
	stats.After = cur.NumInstrs()
	span.WithExtra("rounds", strconv.Itoa(stats.Rounds)).
		WithExtra("instrs", fmt.Sprintf("%d->%d", stats.Before, stats.After)).
		End("")
	return cur, stats, nil
}

// Round applies every pass once.
func Round(f *mir.Func, opts config.Options) (*mir.Func, error) {
	f = AccountCPU(f, opts.CPUAccounting)
	types, err := analysis.InferTypes(f)
	if err != nil {
		return nil, err
	}
	f = InlineBranches(f, types)
	if opts.ConstFolding {
		f = FoldConstants(f)
		if f, err = PruneDead(f, types); err != nil {
			return nil, err
		}
	}
	f = mir.PruneUnreachable(f)
	return mir.MergeBlocks(f), nil
}
