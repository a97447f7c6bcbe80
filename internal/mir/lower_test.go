package mir_test

import (
	"errors"
	"slices"
	"testing"

	"moonc/internal/ast"
	"moonc/internal/mir"
)

func lowerChunk(t *testing.T, stmts ...ast.Stmt) *mir.Module {
	t.Helper()
	m, err := mir.LowerChunk(ast.NewChunk("test", stmts...))
	if err != nil {
		t.Fatalf("LowerChunk: %v", err)
	}
	if err := mir.Validate(m); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return m
}

func kinds(b *mir.Block) []mir.InstrKind {
	out := make([]mir.InstrKind, len(b.Instrs))
	for i := range b.Instrs {
		out[i] = b.Instrs[i].Kind
	}
	return out
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

func firstInstr(f *mir.Func, k mir.InstrKind) *mir.Instr {
	for i := range f.Blocks {
		for j := range f.Blocks[i].Instrs {
			if f.Blocks[i].Instrs[j].Kind == k {
				return &f.Blocks[i].Instrs[j]
			}
		}
	}
	return nil
}

func TestLowerReturnBinary(t *testing.T) {
	m := lowerChunk(t, ast.Return(ast.Bin(ast.BinaryAdd, ast.Int(1), ast.Int(2))))
	root := m.Funcs[mir.RootID]
	if len(root.Blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(root.Blocks))
	}
	bb := &root.Blocks[0]
	want := []mir.InstrKind{mir.InstrLoadConst, mir.InstrLoadConst, mir.InstrBinOp}
	if got := kinds(bb); !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if bb.Term.Kind != mir.TermReturn || len(bb.Term.Return.Values) != 1 {
		t.Fatalf("expected return of one value, got %s", mir.FormatTerm(&bb.Term))
	}
	if bb.Term.Return.Values[0] != bb.Instrs[2].BinOp.Dst {
		t.Errorf("return does not use the binop result")
	}
}

func TestLowerShortCircuitUsesPhi(t *testing.T) {
	for _, op := range []ast.BinaryOp{ast.BinaryAnd, ast.BinaryOr} {
		m := lowerChunk(t,
			ast.Local([]ast.LocalID{0}, ast.Int(1)),
			ast.Return(ast.Bin(op, ast.LocalRef(0), ast.Int(2))),
		)
		root := m.Funcs[mir.RootID]
		if got := countKind(root, mir.InstrStorePhi); got != 2 {
			t.Errorf("%s: expected 2 phi stores, got %d", op, got)
		}
		if got := countKind(root, mir.InstrLoadPhi); got != 1 {
			t.Errorf("%s: expected 1 phi load, got %d", op, got)
		}
		if countKind(root, mir.InstrBinOp) != 0 {
			t.Errorf("%s: short-circuit operator must not become a binop", op)
		}
		entry := root.Block(root.Entry)
		if entry.Term.Kind != mir.TermBranch {
			t.Fatalf("%s: expected branch, got %s", op, entry.Term.Kind)
		}
		rhs, join := entry.Term.Branch.Then, entry.Term.Branch.Else
		if op == ast.BinaryOr {
			rhs, join = join, rhs
		}
		if k := kinds(root.Block(join)); len(k) == 0 || k[0] != mir.InstrLoadPhi {
			t.Errorf("%s: join block should start with load_phi, got %v", op, k)
		}
		if root.Block(rhs).Term.Kind != mir.TermJump || root.Block(rhs).Term.Jump.Target != join {
			t.Errorf("%s: right operand block should jump to the join", op)
		}
	}
}

func TestLowerNumericFor(t *testing.T) {
	m := lowerChunk(t, ast.NumericFor(0, ast.Int(1), ast.Int(10), nil))
	root := m.Funcs[mir.RootID]
	entry := root.Block(root.Entry)

	want := []mir.InstrKind{
		mir.InstrLoadConst, mir.InstrLoadConst, mir.InstrLoadConst, // init, limit, step
		mir.InstrToNumber, mir.InstrToNumber, mir.InstrToNumber,
		mir.InstrBinOp, mir.InstrStoreVar,
	}
	if got := kinds(entry); !slices.Equal(got, want) {
		t.Fatalf("entry: expected %v, got %v", want, got)
	}
	init, limit, step := entry.Instrs[0].LoadConst.Dst, entry.Instrs[1].LoadConst.Dst, entry.Instrs[2].LoadConst.Dst
	for i, src := range []mir.Val{limit, step, init} {
		if got := entry.Instrs[3+i].ToNumber.Src; got != src {
			t.Errorf("conversion %d: expected %s, got %s", i, src, got)
		}
	}
	sub := entry.Instrs[6].BinOp
	if sub.Op != ast.BinarySub || sub.Left != entry.Instrs[5].ToNumber.Dst || sub.Right != entry.Instrs[4].ToNumber.Dst {
		t.Errorf("expected init-step, got %s", mir.FormatInstr(&entry.Instrs[6]))
	}

	if entry.Term.Kind != mir.TermJump {
		t.Fatalf("entry should jump to the loop head")
	}
	head := root.Block(entry.Term.Jump.Target)
	wantHead := []mir.InstrKind{mir.InstrLoadVar, mir.InstrBinOp, mir.InstrStoreVar, mir.InstrLoopEnd}
	if got := kinds(head); !slices.Equal(got, wantHead) {
		t.Fatalf("head: expected %v, got %v", wantHead, got)
	}
	le := head.Instrs[3].LoopEnd
	if le.Index != head.Instrs[1].BinOp.Dst || le.Limit != entry.Instrs[3].ToNumber.Dst || le.Step != entry.Instrs[4].ToNumber.Dst {
		t.Errorf("loop_end operands wrong: %s", mir.FormatInstr(&head.Instrs[3]))
	}
	br := head.Term.Branch
	if head.Term.Kind != mir.TermBranch || br.Cond != le.Dst {
		t.Fatalf("head should branch on loop_end")
	}
	body := root.Block(br.Else)
	if k := kinds(body); len(k) != 1 || k[0] != mir.InstrStoreVar || !body.Instrs[0].StoreVar.Fresh {
		t.Errorf("body should only bind the loop variable, got %v", k)
	}
	if body.Term.Kind != mir.TermJump || body.Term.Jump.Target != head.Label {
		t.Errorf("body should jump back to the head")
	}
	if exit := root.Block(br.Then); exit.Term.Kind != mir.TermReturn {
		t.Errorf("exit should return, got %s", exit.Term.Kind)
	}
}

func TestLowerGenericForPadsControlList(t *testing.T) {
	m := lowerChunk(t,
		ast.Local([]ast.LocalID{0}),
		ast.GenericFor([]ast.LocalID{1, 2}, []ast.Expr{ast.LocalRef(0)}),
	)
	root := m.Funcs[mir.RootID]
	call := firstInstr(root, mir.InstrCall)
	if call == nil {
		t.Fatalf("expected iterator call")
	}
	if len(call.Call.Args) != 2 {
		t.Fatalf("expected (state, control) arguments, got %d", len(call.Call.Args))
	}
	state := defOf(root, call.Call.Args[0])
	if state == nil || state.Kind != mir.InstrLoadConst || state.LoadConst.Const.Kind != mir.ConstNil {
		t.Errorf("missing state should be padded with nil")
	}
	if got := countKind(root, mir.InstrProject); got != 2 {
		t.Errorf("expected one projection per loop variable, got %d", got)
	}
}

func TestLowerExprListAdjustment(t *testing.T) {
	t.Run("truncate", func(t *testing.T) {
		m := lowerChunk(t, ast.Local([]ast.LocalID{0}, ast.Int(1), ast.Int(2), ast.Int(3)))
		root := m.Funcs[mir.RootID]
		if got := countKind(root, mir.InstrLoadConst); got != 3 {
			t.Errorf("extra values must still be evaluated, got %d constants", got)
		}
		if got := countKind(root, mir.InstrStoreVar); got != 1 {
			t.Errorf("expected 1 store, got %d", got)
		}
	})
	t.Run("expand trailing call", func(t *testing.T) {
		m := lowerChunk(t, ast.Local([]ast.LocalID{0, 1, 2}, ast.Call(ast.Global("g"))))
		root := m.Funcs[mir.RootID]
		var idx []int32
		for _, ins := range root.Blocks[0].Instrs {
			if ins.Kind == mir.InstrProject {
				idx = append(idx, ins.Project.Index)
			}
		}
		if !slices.Equal(idx, []int32{0, 1, 2}) {
			t.Errorf("expected projections 0,1,2, got %v", idx)
		}
	})
	t.Run("pad after non-trailing call", func(t *testing.T) {
		m := lowerChunk(t, ast.Local([]ast.LocalID{0, 1}, ast.Call(ast.Global("g")), ast.Int(1), ast.Int(2)))
		root := m.Funcs[mir.RootID]
		if got := countKind(root, mir.InstrProject); got != 1 {
			t.Errorf("a call that is not last is truncated to one value, got %d projections", got)
		}
	})
}

func TestLowerTableConstructorOrder(t *testing.T) {
	m := lowerChunk(t, ast.Return(ast.Table(
		ast.Item(ast.Int(10)),
		ast.Keyed(ast.Str("k"), ast.Int(20)),
		ast.Item(ast.Call(ast.Global("g"))),
	)))
	root := m.Funcs[mir.RootID]
	nt := firstInstr(root, mir.InstrNewTable)
	if nt == nil || nt.NewTable.ArrayHint != 2 || nt.NewTable.HashHint != 1 {
		t.Fatalf("unexpected new_table: %v", nt)
	}
	var stores []*mir.Instr
	for i := range root.Blocks[0].Instrs {
		ins := &root.Blocks[0].Instrs[i]
		if ins.Kind == mir.InstrSetTable || ins.Kind == mir.InstrAppendMulti {
			stores = append(stores, ins)
		}
	}
	if len(stores) != 3 {
		t.Fatalf("expected 3 stores, got %d", len(stores))
	}
	if k := defOf(root, stores[0].SetTable.Key); k == nil || k.LoadConst.Const.Kind != mir.ConstString {
		t.Errorf("keyed entry must be stored first")
	}
	if k := defOf(root, stores[1].SetTable.Key); k == nil || !k.LoadConst.Const.Same(mir.IntConst(1)) {
		t.Errorf("first positional entry should use key 1")
	}
	if stores[2].Kind != mir.InstrAppendMulti || stores[2].AppendMulti.Start != 2 {
		t.Errorf("trailing call should be appended from index 2, got %s", mir.FormatInstr(stores[2]))
	}
}

func TestLowerClosureCapturesLocal(t *testing.T) {
	child := &ast.FuncBody{
		Name:   "inner",
		Upvals: []ast.Upval{{Name: "x", Kind: ast.UpvalLocal, Local: 0}},
		Block:  ast.Block{Stmts: []ast.Stmt{ast.Return(ast.UpvalRef(0))}},
	}
	m := lowerChunk(t,
		ast.Local([]ast.LocalID{0}, ast.Int(1)),
		ast.Return(ast.Func(child)),
	)
	if len(m.Funcs) != 2 {
		t.Fatalf("expected 2 functions, got %d", len(m.Funcs))
	}
	root := m.Funcs[mir.RootID]
	clo := firstInstr(root, mir.InstrClosure)
	if clo == nil {
		t.Fatalf("expected closure instruction")
	}
	if clo.Closure.Func != mir.RootID.Child(0) {
		t.Errorf("expected child id %s, got %s", mir.RootID.Child(0), clo.Closure.Func)
	}
	store := firstInstr(root, mir.InstrStoreVar)
	if len(clo.Closure.Captures) != 1 || clo.Closure.Captures[0].Kind != mir.CaptureVar ||
		clo.Closure.Captures[0].Var != store.StoreVar.Dst {
		t.Errorf("closure should capture the local's Var, got %s", mir.FormatInstr(clo))
	}
	inner := m.Funcs[clo.Closure.Func]
	if len(inner.UpVars) != 1 || countKind(inner, mir.InstrLoadUpVar) != 1 {
		t.Errorf("child should read its single upvalue")
	}
}

func TestLowerLocalFunctionSeesItself(t *testing.T) {
	body := &ast.FuncBody{
		Params: []ast.LocalID{0},
		Upvals: []ast.Upval{{Name: "f", Kind: ast.UpvalLocal, Local: 0}},
		Block: ast.Block{Stmts: []ast.Stmt{
			ast.Return(ast.Call(ast.UpvalRef(0), ast.LocalRef(0))),
		}},
	}
	m := lowerChunk(t, ast.LocalFunc(0, body))
	root := m.Funcs[mir.RootID]
	clo := firstInstr(root, mir.InstrClosure)
	store := firstInstr(root, mir.InstrStoreVar)
	if clo.Closure.Captures[0].Var != store.StoreVar.Dst {
		t.Errorf("recursive local function must capture its own variable")
	}
	inner := m.Funcs[mir.RootID.Child(0)]
	if term := inner.Blocks[0].Term; term.Kind != mir.TermTailCall {
		t.Errorf("return f(n) should be a tail call, got %s", term.Kind)
	}

	// local f; f = function ... end
	var stores []int
	closureAt := -1
	for i, ins := range root.Blocks[0].Instrs {
		switch ins.Kind {
		case mir.InstrStoreVar:
			stores = append(stores, i)
		case mir.InstrClosure:
			closureAt = i
		}
	}
	instrs := root.Blocks[0].Instrs
	if len(stores) != 2 || closureAt < 0 || stores[0] > closureAt || stores[1] < closureAt {
		t.Fatalf("expected store, closure, store; got %v", kinds(&root.Blocks[0]))
	}
	if first := instrs[stores[0]].StoreVar; !first.Fresh || defOf(root, first.Src).Kind != mir.InstrLoadConst {
		t.Errorf("declaration should freshly store nil, got %s", mir.FormatInstr(&instrs[stores[0]]))
	}
	if second := instrs[stores[1]].StoreVar; second.Fresh || second.Src != clo.Closure.Dst {
		t.Errorf("closure should be assigned to the declared variable, got %s", mir.FormatInstr(&instrs[stores[1]]))
	}
}

func TestLowerLocalFunctionInLoopCapturesEachIteration(t *testing.T) {
	body := &ast.FuncBody{
		Upvals: []ast.Upval{{Name: "f", Kind: ast.UpvalLocal, Local: 1}},
		Block:  ast.Block{Stmts: []ast.Stmt{ast.Return(ast.UpvalRef(0))}},
	}
	m := lowerChunk(t,
		ast.NumericFor(0, ast.Int(1), ast.Int(3), nil,
			ast.LocalFunc(1, body),
			ast.CallStmt(ast.Call(ast.Global("keep"), ast.LocalRef(1))),
		),
	)
	root := m.Funcs[mir.RootID]
	for i := range root.Blocks {
		bb := &root.Blocks[i]
		closureAt := -1
		for j, ins := range bb.Instrs {
			if ins.Kind == mir.InstrClosure {
				closureAt = j
			}
		}
		if closureAt < 0 {
			continue
		}
		f := bb.Instrs[closureAt].Closure.Captures[0].Var
		freshAt := -1
		for j, ins := range bb.Instrs {
			if ins.Kind == mir.InstrStoreVar && ins.StoreVar.Dst == f && ins.StoreVar.Fresh {
				freshAt = j
				break
			}
		}
		if freshAt < 0 || freshAt > closureAt {
			t.Fatalf("%s: closure created before the fresh declaration: %v", bb.Label, kinds(bb))
		}
		return
	}
	t.Fatalf("no closure in the loop body")
}

func TestLowerMethodCallEvaluatesReceiverOnce(t *testing.T) {
	m := lowerChunk(t,
		ast.Local([]ast.LocalID{0}, ast.Table()),
		ast.CallStmt(ast.MethodCall(ast.LocalRef(0), "push", ast.Int(1))),
	)
	root := m.Funcs[mir.RootID]
	if got := countKind(root, mir.InstrLoadVar); got != 1 {
		t.Errorf("receiver should be loaded once, got %d loads", got)
	}
	call := firstInstr(root, mir.InstrCall)
	get := defOf(root, call.Call.Func)
	if get == nil || get.Kind != mir.InstrGetTable || get.GetTable.Table != call.Call.Args[0] {
		t.Errorf("method should be looked up on the receiver passed as self")
	}
}

func TestLowerBreakOutsideLoop(t *testing.T) {
	_, err := mir.LowerChunk(ast.NewChunk("test", ast.Break()))
	if !errors.Is(err, mir.ErrBreakOutsideLoop) {
		t.Fatalf("expected ErrBreakOutsideLoop, got %v", err)
	}

	m := lowerChunk(t, ast.While(ast.True(), ast.Break()))
	if err := mir.ValidateFunc(m.Funcs[mir.RootID]); err != nil {
		t.Fatalf("break inside while: %v", err)
	}
}

func TestLowerForwardGoto(t *testing.T) {
	m := lowerChunk(t,
		ast.Goto("done"),
		ast.CallStmt(ast.Call(ast.Global("skipped"))),
		ast.LabelStmt("done"),
		ast.Return(ast.Int(1)),
	)
	root := mir.PruneUnreachable(m.Funcs[mir.RootID])
	if countKind(root, mir.InstrCall) != 0 {
		t.Errorf("code jumped over by goto should be unreachable")
	}
	if err := mir.ValidateFunc(root); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLowerSiblingBlocksReuseLabel(t *testing.T) {
	m := lowerChunk(t,
		ast.NumericFor(0, ast.Int(1), ast.Int(2), nil,
			ast.If(ast.LocalRef(0), []ast.Stmt{ast.Goto("continue")}, nil),
			ast.CallStmt(ast.Call(ast.Global("g1"))),
			ast.LabelStmt("continue"),
		),
		ast.NumericFor(1, ast.Int(1), ast.Int(2), nil,
			ast.Goto("continue"),
			ast.CallStmt(ast.Call(ast.Global("g2"))),
			ast.LabelStmt("continue"),
		),
	)
	root := mir.PruneUnreachable(m.Funcs[mir.RootID])
	if err := mir.ValidateFunc(root); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	var called []string
	for i := range root.Blocks {
		for _, ins := range root.Blocks[i].Instrs {
			if ins.Kind == mir.InstrGetTable {
				if k := defOf(root, ins.GetTable.Key); k != nil && k.Kind == mir.InstrLoadConst {
					called = append(called, k.LoadConst.Const.String)
				}
			}
		}
	}
	if !slices.Contains(called, "g1") || slices.Contains(called, "g2") {
		t.Errorf("each goto should reach the label of its own loop; reachable globals %v", called)
	}
}

func TestLowerGotoLabelVisibility(t *testing.T) {
	t.Run("backward from nested block", func(t *testing.T) {
		lowerChunk(t,
			ast.Local([]ast.LocalID{0}, ast.Int(0)),
			ast.LabelStmt("top"),
			ast.If(ast.LocalRef(0), []ast.Stmt{ast.Goto("top")}, nil),
		)
	})
	t.Run("forward out of nested block", func(t *testing.T) {
		lowerChunk(t,
			ast.Do(ast.Do(ast.Goto("out"))),
			ast.LabelStmt("out"),
		)
	})
	t.Run("label in a nested block is hidden", func(t *testing.T) {
		_, err := mir.LowerChunk(ast.NewChunk("t",
			ast.Goto("inner"),
			ast.Do(ast.LabelStmt("inner")),
		))
		if !errors.Is(err, mir.ErrMalformed) {
			t.Fatalf("expected ErrMalformed, got %v", err)
		}
	})
	t.Run("same block twice", func(t *testing.T) {
		_, err := mir.LowerChunk(ast.NewChunk("t",
			ast.LabelStmt("x"),
			ast.LabelStmt("x"),
		))
		if !errors.Is(err, mir.ErrMalformed) {
			t.Fatalf("expected ErrMalformed, got %v", err)
		}
	})
}

func TestLowerMalformed(t *testing.T) {
	tests := []struct {
		name  string
		chunk *ast.Chunk
	}{
		{"missing label", ast.NewChunk("t", ast.Goto("nowhere"))},
		{"unknown local", ast.NewChunk("t", ast.Return(ast.LocalRef(7)))},
		{"vararg in fixed function", ast.NewChunk("t", ast.Return(ast.Func(&ast.FuncBody{
			Block: ast.Block{Stmts: []ast.Stmt{ast.Return(ast.VarArgs())}},
		})))},
		{"call of nil", ast.NewChunk("t", ast.CallStmt(ast.Call(ast.Nil())))},
		{"nil chunk", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := mir.LowerChunk(tt.chunk); !errors.Is(err, mir.ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestLowerVarArgsReturnIsTrailing(t *testing.T) {
	m := lowerChunk(t, ast.Return(ast.Int(1), ast.VarArgs()))
	term := m.Funcs[mir.RootID].Blocks[0].Term
	if term.Kind != mir.TermReturn || len(term.Return.Values) != 1 || term.Return.Trailing == mir.NoMultiVal {
		t.Fatalf("expected return v, m..., got %s", mir.FormatTerm(&term))
	}
}
