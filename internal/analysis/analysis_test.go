package analysis_test

import (
	"errors"
	"testing"

	"moonc/internal/analysis"
	"moonc/internal/ast"
	"moonc/internal/mir"
	"moonc/internal/testkit"
)

func lower(t *testing.T, chunk *ast.Chunk) *mir.Module {
	t.Helper()
	m, err := mir.LowerChunk(chunk)
	if err != nil {
		t.Fatalf("LowerChunk: %v", err)
	}
	return m
}

func findInstr(f *mir.Func, k mir.InstrKind) *mir.Instr {
	for i := range f.Blocks {
		for j := range f.Blocks[i].Instrs {
			if f.Blocks[i].Instrs[j].Kind == k {
				return &f.Blocks[i].Instrs[j]
			}
		}
	}
	return nil
}

func defOf(f *mir.Func, v mir.Val) *mir.Instr {
	for i := range f.Blocks {
		for j := range f.Blocks[i].Instrs {
			ins := &f.Blocks[i].Instrs[j]
			if d, ok := ins.Dst(); ok && d == v {
				return ins
			}
		}
	}
	return nil
}

func TestBinaryResult(t *testing.T) {
	tests := []struct {
		op   ast.BinaryOp
		l, r analysis.Type
		want analysis.Type
	}{
		{ast.BinaryAdd, analysis.TypeInt, analysis.TypeInt, analysis.TypeInt},
		{ast.BinaryAdd, analysis.TypeInt, analysis.TypeFloat, analysis.TypeFloat},
		{ast.BinaryAdd, analysis.TypeInt, analysis.TypeNumber, analysis.TypeNumber},
		{ast.BinaryAdd, analysis.TypeString, analysis.TypeInt, analysis.TypeNumber},
		{ast.BinaryAdd, analysis.TypeTable, analysis.TypeInt, analysis.TypeAny},
		{ast.BinaryDiv, analysis.TypeInt, analysis.TypeInt, analysis.TypeFloat},
		{ast.BinaryPow, analysis.TypeInt, analysis.TypeInt, analysis.TypeFloat},
		{ast.BinaryBitAnd, analysis.TypeFloat, analysis.TypeInt, analysis.TypeInt},
		{ast.BinaryIDiv, analysis.TypeFloat, analysis.TypeFloat, analysis.TypeFloat},
		{ast.BinaryConcat, analysis.TypeString, analysis.TypeInt, analysis.TypeString},
		{ast.BinaryConcat, analysis.TypeNil, analysis.TypeString, analysis.TypeAny},
		{ast.BinaryLess, analysis.TypeAny, analysis.TypeAny, analysis.TypeBool},
		{ast.BinaryEq, analysis.TypeTable, analysis.TypeNil, analysis.TypeBool},
	}
	for _, tt := range tests {
		if got := analysis.BinaryResult(tt.op, tt.l, tt.r); got != tt.want {
			t.Errorf("%s %s %s: expected %s, got %s", tt.l, tt.op, tt.r, tt.want, got)
		}
	}
}

func TestUnaryResult(t *testing.T) {
	tests := []struct {
		op   ast.UnaryOp
		x    analysis.Type
		want analysis.Type
	}{
		{ast.UnaryNot, analysis.TypeAny, analysis.TypeBool},
		{ast.UnaryMinus, analysis.TypeInt, analysis.TypeInt},
		{ast.UnaryMinus, analysis.TypeFloat, analysis.TypeFloat},
		{ast.UnaryMinus, analysis.TypeTable, analysis.TypeAny},
		{ast.UnaryBitNot, analysis.TypeFloat, analysis.TypeInt},
		{ast.UnaryLen, analysis.TypeString, analysis.TypeInt},
		{ast.UnaryLen, analysis.TypeTable, analysis.TypeAny},
	}
	for _, tt := range tests {
		if got := analysis.UnaryResult(tt.op, tt.x); got != tt.want {
			t.Errorf("%s %s: expected %s, got %s", tt.op, tt.x, tt.want, got)
		}
	}
}

func TestTruthiness(t *testing.T) {
	if !analysis.TypeNil.AlwaysFalsy() {
		t.Errorf("nil should be always falsy")
	}
	if analysis.TypeNone.AlwaysFalsy() || analysis.TypeNone.AlwaysTruthy() {
		t.Errorf("an unknown type decides nothing")
	}
	if analysis.TypeBool.AlwaysTruthy() || analysis.TypeBool.AlwaysFalsy() {
		t.Errorf("booleans decide nothing statically")
	}
	if !(analysis.TypeNumber | analysis.TypeTable).AlwaysTruthy() {
		t.Errorf("numbers and tables should be always truthy")
	}
	if (analysis.TypeNil | analysis.TypeInt).AlwaysTruthy() {
		t.Errorf("a maybe-nil value is not always truthy")
	}
	if got := (analysis.TypeInt | analysis.TypeString).String(); got != "integer|string" {
		t.Errorf("unexpected type string %q", got)
	}
}

func TestInferTypesStraightLine(t *testing.T) {
	m := lower(t, testkit.Find("locals"))
	root := m.Funcs[mir.RootID]
	ti, err := analysis.InferTypes(root)
	if err != nil {
		t.Fatalf("InferTypes: %v", err)
	}
	mul := findInstr(root, mir.InstrBinOp)
	if mul == nil {
		t.Fatalf("no binop")
	}
	// x0 starts as an integer and later holds the float product.
	if got := ti.Of(mul.BinOp.Dst); got != analysis.TypeFloat {
		t.Errorf("expected float, got %s", got)
	}
	left := defOf(root, mul.BinOp.Left)
	if left == nil || left.Kind != mir.InstrLoadVar {
		t.Fatalf("left operand should be a variable load")
	}
	if got := ti.OfVar(left.LoadVar.Src); got != analysis.TypeNumber {
		t.Errorf("%s: expected number, got %s", left.LoadVar.Src, got)
	}
	if got := ti.OfVar(99); got != analysis.TypeAny {
		t.Errorf("unknown variable should be any, got %s", got)
	}
}

func TestInferTypesLoopAndClosure(t *testing.T) {
	m := lower(t, testkit.Find("numeric_for"))
	root := m.Funcs[mir.RootID]
	ti, err := analysis.InferTypes(root)
	if err != nil {
		t.Fatalf("InferTypes: %v", err)
	}
	end := findInstr(root, mir.InstrLoopEnd)
	if got := ti.Of(end.LoopEnd.Dst); got != analysis.TypeBool {
		t.Errorf("loop_end: expected boolean, got %s", got)
	}
	conv := findInstr(root, mir.InstrToNumber)
	if got := ti.Of(conv.ToNumber.Dst); got != analysis.TypeInt {
		t.Errorf("to_number of an integer: expected integer, got %s", got)
	}

	m = lower(t, testkit.Find("closure_counter"))
	root = m.Funcs[mir.RootID]
	ti, err = analysis.InferTypes(root)
	if err != nil {
		t.Fatalf("InferTypes: %v", err)
	}
	cl := findInstr(root, mir.InstrClosure)
	if got := ti.Of(cl.Closure.Dst); got != analysis.TypeFunc {
		t.Errorf("closure: expected function, got %s", got)
	}
	for _, c := range cl.Closure.Captures {
		if c.Kind == mir.CaptureVar && ti.OfVar(c.Var) != analysis.TypeAny {
			t.Errorf("captured %s should be any, got %s", c.Var, ti.OfVar(c.Var))
		}
	}
}

func TestInferTypesRejectsUseBeforeDefinition(t *testing.T) {
	f := &mir.Func{
		ID: mir.RootID,
		Blocks: []mir.Block{{
			Label: 0,
			Instrs: []mir.Instr{{
				Kind: mir.InstrUnOp,
				UnOp: mir.UnOpInstr{Dst: 2, Op: ast.UnaryMinus, Operand: 1},
			}},
			Term: mir.Terminator{Kind: mir.TermReturn, Return: mir.ReturnTerm{Values: []mir.Val{2}}},
		}},
		NextID: 3,
	}
	if _, err := analysis.InferTypes(f); !errors.Is(err, analysis.ErrInternal) {
		t.Fatalf("expected ErrInternal, got %v", err)
	}
}

func TestLivenessSoundOverCorpus(t *testing.T) {
	for _, p := range testkit.Corpus() {
		t.Run(p.Name, func(t *testing.T) {
			m := lower(t, p.Chunk)
			for _, id := range m.IDs() {
				f := m.Funcs[id]
				if err := testkit.CheckSingleAssignment(f); err != nil {
					t.Fatal(err)
				}
				if _, err := analysis.InferTypes(f); err != nil {
					t.Fatalf("%s: InferTypes: %v", id, err)
				}
				lv, err := analysis.ComputeLiveness(f)
				if err != nil {
					t.Fatalf("%s: ComputeLiveness: %v", id, err)
				}
				if err := testkit.CheckLivenessSound(f, lv); err != nil {
					t.Fatal(err)
				}
			}
		})
	}
}

func TestLivenessCapturedVarLiveAtExit(t *testing.T) {
	m := lower(t, testkit.Find("closure_counter"))
	root := m.Funcs[mir.RootID]
	lv, err := analysis.ComputeLiveness(root)
	if err != nil {
		t.Fatalf("ComputeLiveness: %v", err)
	}
	captured := mir.CapturedVars(root)
	if len(captured) == 0 {
		t.Fatalf("expected a captured variable")
	}
	for i := range root.Blocks {
		bb := &root.Blocks[i]
		if !bb.Term.IsExit() {
			continue
		}
		live := lv.LiveIn(bb.Label, len(bb.Instrs))
		for x := range captured {
			if !live.IsSet(int(x)) {
				t.Errorf("%s: captured %s not live at %s", bb.Label, x, mir.FormatTerm(&bb.Term))
			}
		}
	}
}

func TestLivenessLoopCarriesVariable(t *testing.T) {
	m := lower(t, testkit.Find("while_break"))
	root := m.Funcs[mir.RootID]
	lv, err := analysis.ComputeLiveness(root)
	if err != nil {
		t.Fatalf("ComputeLiveness: %v", err)
	}
	load := findInstr(root, mir.InstrLoadVar)
	if load == nil {
		t.Fatalf("no variable load")
	}
	x := load.LoadVar.Src
	preds := mir.Predecessors(root)
	found := false
	for _, l := range mir.ReversePostorder(root) {
		if len(preds[l]) > 1 && lv.Block(l).In.IsSet(int(x)) {
			found = true
		}
	}
	if !found {
		t.Errorf("%s should be live into the loop header", x)
	}
	if got := lv.Vars(lv.Block(root.Entry).In); len(got) != 0 {
		t.Errorf("nothing should be live on entry, got %v", got)
	}
}

func TestLivenessRejectsReadWithoutDefinition(t *testing.T) {
	f := &mir.Func{
		ID: mir.RootID,
		Blocks: []mir.Block{{
			Label: 0,
			Instrs: []mir.Instr{{
				Kind:    mir.InstrLoadVar,
				LoadVar: mir.LoadVarInstr{Dst: 2, Src: 1},
			}},
			Term: mir.Terminator{Kind: mir.TermReturn, Return: mir.ReturnTerm{Values: []mir.Val{2}}},
		}},
		NextID: 3,
	}
	if _, err := analysis.ComputeLiveness(f); !errors.Is(err, analysis.ErrInternal) {
		t.Fatalf("expected ErrInternal, got %v", err)
	}

	f.Params = []mir.Var{1}
	lv, err := analysis.ComputeLiveness(f)
	if err != nil {
		t.Fatalf("parameter read: %v", err)
	}
	if !lv.Known(mir.VarEntity(1)) || lv.Known(mir.ValEntity(1)) {
		t.Errorf("entity kinds not recorded")
	}
}

func TestDependencies(t *testing.T) {
	m := lower(t, testkit.Find("nested_closure"))
	root := m.Funcs[mir.RootID]
	deps := analysis.Dependencies(root)
	if len(deps) != 1 || deps[0] != mir.RootID.Child(0) {
		t.Fatalf("root: expected [root.0], got %v", deps)
	}
	outer := m.Funcs[mir.RootID.Child(0)]
	deps = analysis.Dependencies(outer)
	if !deps.Contains(mir.RootID.Child(0).Child(0)) {
		t.Errorf("outer should depend on its inner function, got %v", deps)
	}
	if deps.Contains(mir.RootID) {
		t.Errorf("outer must not depend on root")
	}

	m = lower(t, testkit.Find("arith"))
	if deps := analysis.Dependencies(m.Funcs[mir.RootID]); len(deps) != 0 {
		t.Errorf("expected no dependencies, got %v", deps)
	}
}
