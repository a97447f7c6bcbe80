package opt_test

import (
	"context"
	"math"
	"testing"

	"moonc/internal/analysis"
	"moonc/internal/ast"
	"moonc/internal/config"
	"moonc/internal/mir"
	"moonc/internal/opt"
	"moonc/internal/testkit"
)

func noAccounting() config.Options {
	opts := config.Default()
	opts.CPUAccounting = config.CPUAccountingOff
	return opts
}

func optimizeRoot(t *testing.T, name string, opts config.Options) (*mir.Func, opt.Stats) {
	t.Helper()
	m, err := mir.LowerChunk(testkit.Find(name))
	if err != nil {
		t.Fatalf("LowerChunk: %v", err)
	}
	f, stats, err := opt.Optimize(context.Background(), m.Funcs[mir.RootID], opts)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	return f, stats
}

func countKind(f *mir.Func, k mir.InstrKind) int {
	n := 0
	for i := range f.Blocks {
		for j := range f.Blocks[i].Instrs {
			if f.Blocks[i].Instrs[j].Kind == k {
				n++
			}
		}
	}
	return n
}

func TestFoldReturnOnePlusTwo(t *testing.T) {
	f, _ := optimizeRoot(t, "arith", noAccounting())
	if len(f.Blocks) != 1 {
		t.Fatalf("expected one block, got %d", len(f.Blocks))
	}
	bb := &f.Blocks[0]
	if len(bb.Instrs) != 1 || bb.Instrs[0].Kind != mir.InstrLoadConst {
		t.Fatalf("expected a single constant load, got:\n%v", bb.Instrs)
	}
	load := bb.Instrs[0].LoadConst
	if !load.Const.Same(mir.IntConst(3)) {
		t.Errorf("expected 3, got %s", load.Const.Format())
	}
	if bb.Term.Kind != mir.TermReturn || len(bb.Term.Return.Values) != 1 || bb.Term.Return.Values[0] != load.Dst {
		t.Errorf("return should use the folded constant, got %s", mir.FormatTerm(&bb.Term))
	}

	f, _ = optimizeRoot(t, "arith", config.Default())
	bb = &f.Blocks[0]
	if len(bb.Instrs) != 2 || bb.Instrs[0].Kind != mir.InstrCPUAccount || bb.Instrs[0].CPUAccount.Cost != 2 {
		t.Errorf("expected cpu_account 2 before the constant, got %v", bb.Instrs)
	}
}

func TestNilBranchKeepsElseArm(t *testing.T) {
	f, _ := optimizeRoot(t, "nil_branch", noAccounting())
	for i := range f.Blocks {
		if f.Blocks[i].Term.Kind == mir.TermBranch {
			t.Fatalf("branch survived in %s", f.Blocks[i].Label)
		}
	}
	if len(f.Blocks) != 1 {
		t.Fatalf("expected the else arm merged into the entry, got %d blocks", len(f.Blocks))
	}
	bb := &f.Blocks[0]
	if len(bb.Instrs) != 1 || !bb.Instrs[0].LoadConst.Const.Same(mir.IntConst(2)) {
		t.Errorf("expected only the else arm's constant 2, got %v", bb.Instrs)
	}
}

func TestOptimizeOverCorpus(t *testing.T) {
	for _, p := range testkit.Corpus() {
		t.Run(p.Name, func(t *testing.T) {
			m, err := mir.LowerChunk(p.Chunk)
			if err != nil {
				t.Fatalf("LowerChunk: %v", err)
			}
			for _, id := range m.IDs() {
				in := m.Funcs[id]
				before := mir.Clone(in)
				f, stats, err := opt.Optimize(context.Background(), in, config.Default())
				if err != nil {
					t.Fatalf("%s: Optimize: %v", id, err)
				}
				if stats.Capped {
					t.Errorf("%s: did not converge in %d rounds", id, stats.Rounds)
				}
				if !mir.Equal(in, before) {
					t.Errorf("%s: input was modified", id)
				}
				if err := mir.ValidateFunc(f); err != nil {
					t.Fatalf("%s: %v", id, err)
				}
				if err := testkit.CheckSingleAssignment(f); err != nil {
					t.Fatal(err)
				}
				if got := len(mir.Reachable(f)); got != len(f.Blocks) {
					t.Errorf("%s: %d of %d blocks reachable", id, got, len(f.Blocks))
				}
				for i := range f.Blocks {
					bb := &f.Blocks[i]
					if countKind(&mir.Func{Blocks: []mir.Block{*bb}}, mir.InstrCPUAccount) != 1 ||
						bb.Instrs[0].Kind != mir.InstrCPUAccount || int(bb.Instrs[0].CPUAccount.Cost) != len(bb.Instrs) {
						t.Errorf("%s: %s: bad accounting %v", id, bb.Label, bb.Instrs)
					}
				}
				lv, err := analysis.ComputeLiveness(f)
				if err != nil {
					t.Fatalf("%s: ComputeLiveness: %v", id, err)
				}
				if err := testkit.CheckLivenessSound(f, lv); err != nil {
					t.Fatal(err)
				}

				again, stats, err := opt.Optimize(context.Background(), f, config.Default())
				if err != nil {
					t.Fatalf("%s: second Optimize: %v", id, err)
				}
				if !mir.Equal(again, f) || stats.Rounds != 1 {
					t.Errorf("%s: optimization is not idempotent (%d rounds)", id, stats.Rounds)
				}
			}
		})
	}
}

func TestConstFoldingOff(t *testing.T) {
	opts := noAccounting()
	opts.ConstFolding = false
	f, _ := optimizeRoot(t, "arith", opts)
	if countKind(f, mir.InstrBinOp) != 1 || countKind(f, mir.InstrLoadConst) != 2 {
		t.Errorf("folding and pruning should be off, got %d instrs", f.NumInstrs())
	}
}

func TestLoopBranchSurvives(t *testing.T) {
	f, _ := optimizeRoot(t, "numeric_for", config.Default())
	branches := 0
	for i := range f.Blocks {
		if f.Blocks[i].Term.Kind == mir.TermBranch {
			branches++
		}
	}
	if branches != 1 {
		t.Errorf("expected the loop test branch to survive, got %d branches", branches)
	}
	if countKind(f, mir.InstrLoopEnd) != 1 {
		t.Errorf("loop_end must stay")
	}
}

func TestDeadClosureRemoved(t *testing.T) {
	f, _ := optimizeRoot(t, "dead_closure", config.Default())
	if countKind(f, mir.InstrClosure) != 0 {
		t.Errorf("unused closure should be pruned")
	}
	if deps := analysis.Dependencies(f); len(deps) != 0 {
		t.Errorf("expected no dependencies, got %v", deps)
	}
}

func TestEffectsAreKept(t *testing.T) {
	f, _ := optimizeRoot(t, "globals", noAccounting())
	if got := countKind(f, mir.InstrSetTable); got != 2 {
		t.Errorf("expected 2 global writes, got %d", got)
	}
	if got := countKind(f, mir.InstrCall); got != 1 {
		t.Errorf("expected the print call, got %d", got)
	}
	found := false
	for i := range f.Blocks {
		for _, ins := range f.Blocks[i].Instrs {
			if ins.Kind == mir.InstrLoadConst && ins.LoadConst.Const.Same(mir.StringConst("n=3")) {
				found = true
			}
		}
	}
	if !found {
		t.Errorf("concatenation should fold to \"n=3\"")
	}
}

func TestRoundCap(t *testing.T) {
	opts := noAccounting()
	opts.MaxOptRounds = 1
	_, stats := optimizeRoot(t, "nil_branch", opts)
	if !stats.Capped || stats.Rounds != 1 {
		t.Errorf("expected a capped single round, got %+v", stats)
	}
}

func TestOptimizeCanceled(t *testing.T) {
	m, err := mir.LowerChunk(testkit.Find("arith"))
	if err != nil {
		t.Fatalf("LowerChunk: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := opt.Optimize(ctx, m.Funcs[mir.RootID], config.Default()); err == nil {
		t.Errorf("expected cancellation error")
	}
}

func TestAccountCPUOffStrips(t *testing.T) {
	f, _ := optimizeRoot(t, "while_break", config.Default())
	if countKind(f, mir.InstrCPUAccount) != len(f.Blocks) {
		t.Fatalf("expected one accounting instruction per block")
	}
	stripped := opt.AccountCPU(f, config.CPUAccountingOff)
	if countKind(stripped, mir.InstrCPUAccount) != 0 {
		t.Errorf("off should strip accounting")
	}
	if countKind(f, mir.InstrCPUAccount) != len(f.Blocks) {
		t.Errorf("input was modified")
	}
	if again := opt.AccountCPU(stripped, config.CPUAccountingOff); again != stripped {
		t.Errorf("stripping twice should return the same function")
	}
}

func TestFoldBinary(t *testing.T) {
	i, fl, s := mir.IntConst, mir.FloatConst, mir.StringConst
	tests := []struct {
		op   ast.BinaryOp
		a, b mir.Const
		want mir.Const
		ok   bool
	}{
		{ast.BinaryAdd, i(math.MaxInt64), i(1), i(math.MinInt64), true},
		{ast.BinaryAdd, i(1), fl(0.5), fl(1.5), true},
		{ast.BinaryDiv, i(1), i(2), fl(0.5), true},
		{ast.BinaryPow, i(2), i(10), fl(1024), true},
		{ast.BinaryIDiv, i(7), i(2), i(3), true},
		{ast.BinaryIDiv, i(-7), i(2), i(-4), true},
		{ast.BinaryIDiv, i(1), i(0), mir.Const{}, false},
		{ast.BinaryIDiv, fl(1), i(0), fl(math.Inf(1)), true},
		{ast.BinaryMod, i(7), i(-3), i(-2), true},
		{ast.BinaryMod, i(-7), i(3), i(2), true},
		{ast.BinaryMod, i(5), i(0), mir.Const{}, false},
		{ast.BinaryMod, fl(-7.5), i(2), fl(0.5), true},
		{ast.BinaryAdd, s("10"), i(1), mir.Const{}, false},
		{ast.BinaryBitAnd, i(3), fl(5), i(1), true},
		{ast.BinaryBitOr, fl(1.5), i(0), mir.Const{}, false},
		{ast.BinaryShiftLeft, i(1), i(63), i(math.MinInt64), true},
		{ast.BinaryShiftLeft, i(1), i(64), i(0), true},
		{ast.BinaryShiftRight, i(-1), i(1), i(math.MaxInt64), true},
		{ast.BinaryShiftRight, i(1), i(-1), i(2), true},
		{ast.BinaryConcat, s("a"), i(1), s("a1"), true},
		{ast.BinaryConcat, fl(2), s(""), s("2.0"), true},
		{ast.BinaryConcat, mir.NilConst(), s(""), mir.Const{}, false},
		{ast.BinaryEq, i(1), fl(1), mir.BoolConst(true), true},
		{ast.BinaryEq, s("1"), i(1), mir.BoolConst(false), true},
		{ast.BinaryNotEq, mir.NilConst(), mir.BoolConst(false), mir.BoolConst(true), true},
		{ast.BinaryLess, s("a"), s("b"), mir.BoolConst(true), true},
		{ast.BinaryGreaterEq, i(2), fl(2.5), mir.BoolConst(false), true},
		{ast.BinaryLess, i(1), s("2"), mir.Const{}, false},
		{ast.BinaryLessEq, fl(math.NaN()), fl(math.NaN()), mir.BoolConst(false), true},
	}
	for _, tt := range tests {
		got, ok := opt.FoldBinary(tt.op, tt.a, tt.b)
		if ok != tt.ok {
			t.Errorf("%s %s %s: expected ok=%v, got %v", tt.a.Format(), tt.op, tt.b.Format(), tt.ok, ok)
			continue
		}
		if ok && !got.Same(tt.want) {
			t.Errorf("%s %s %s: expected %s, got %s", tt.a.Format(), tt.op, tt.b.Format(), tt.want.Format(), got.Format())
		}
	}
}

func TestFoldUnary(t *testing.T) {
	tests := []struct {
		op   ast.UnaryOp
		a    mir.Const
		want mir.Const
		ok   bool
	}{
		{ast.UnaryMinus, mir.IntConst(math.MinInt64), mir.IntConst(math.MinInt64), true},
		{ast.UnaryMinus, mir.FloatConst(1.5), mir.FloatConst(-1.5), true},
		{ast.UnaryMinus, mir.StringConst("1"), mir.Const{}, false},
		{ast.UnaryNot, mir.NilConst(), mir.BoolConst(true), true},
		{ast.UnaryNot, mir.IntConst(0), mir.BoolConst(false), true},
		{ast.UnaryLen, mir.StringConst("abc"), mir.IntConst(3), true},
		{ast.UnaryBitNot, mir.IntConst(0), mir.IntConst(-1), true},
		{ast.UnaryBitNot, mir.FloatConst(0.5), mir.Const{}, false},
	}
	for _, tt := range tests {
		got, ok := opt.FoldUnary(tt.op, tt.a)
		if ok != tt.ok || (ok && !got.Same(tt.want)) {
			t.Errorf("%s%s: expected %s/%v, got %s/%v", tt.op, tt.a.Format(), tt.want.Format(), tt.ok, got.Format(), ok)
		}
	}
}
