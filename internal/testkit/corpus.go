package testkit

import "moonc/internal/ast"

// Program is a named, resolved chunk used by property tests.
type Program struct {
	Name  string
	Chunk *ast.Chunk
}

func ids(xs ...ast.LocalID) []ast.LocalID { return xs }

func exprs(xs ...ast.Expr) []ast.Expr { return xs }

func stmts(xs ...ast.Stmt) []ast.Stmt { return xs }

func local(id ast.LocalID) ast.Expr { return ast.LocalRef(id) }

// Corpus returns small programs that together exercise every statement and
// expression form the translator accepts.
func Corpus() []Program {
	progs := []Program{
		{"arith", ast.NewChunk("arith",
			ast.Return(ast.Bin(ast.BinaryAdd, ast.Int(1), ast.Int(2))),
		)},
		{"locals", ast.NewChunk("locals",
			ast.Local(ids(0, 1), ast.Int(1), ast.Float(2.5)),
			ast.Assign(exprs(local(0)), ast.Bin(ast.BinaryMul, local(0), local(1))),
			ast.Return(local(0), local(1)),
		)},
		{"shortcircuit", ast.NewChunk("shortcircuit",
			ast.Local(ids(0), ast.Call(ast.Global("g"))),
			ast.Local(ids(1), ast.Bin(ast.BinaryOr,
				ast.Bin(ast.BinaryAnd, local(0), ast.Index(local(0), ast.Str("k"))),
				ast.Int(0))),
			ast.Return(local(1)),
		)},
		{"numeric_for", ast.NewChunk("numeric_for",
			ast.Local(ids(0), ast.Int(0)),
			ast.NumericFor(1, ast.Int(1), ast.Int(10), nil,
				ast.Assign(exprs(local(0)), ast.Bin(ast.BinaryAdd, local(0), local(1))),
			),
			ast.Return(local(0)),
		)},
		{"numeric_for_step", ast.NewChunk("numeric_for_step",
			ast.Local(ids(0), ast.Float(0)),
			ast.NumericFor(1, ast.Int(10), ast.Int(1), ptr(ast.Un(ast.UnaryMinus, ast.Int(2))),
				ast.Assign(exprs(local(0)), ast.Bin(ast.BinaryDiv, local(0), local(1))),
			),
			ast.Return(local(0)),
		)},
		{"generic_for", ast.NewChunk("generic_for",
			ast.Local(ids(0), ast.Table(ast.Item(ast.Int(1)), ast.Item(ast.Int(2)), ast.Item(ast.Int(3)))),
			ast.Local(ids(1), ast.Int(0)),
			ast.GenericFor(ids(2, 3), exprs(ast.Call(ast.Global("pairs"), local(0))),
				ast.Assign(exprs(local(1)), ast.Bin(ast.BinaryAdd, local(1), local(3))),
			),
			ast.Return(local(1)),
		)},
		{"while_break", ast.NewChunk("while_break",
			ast.Local(ids(0), ast.Int(0)),
			ast.While(ast.True(),
				ast.Assign(exprs(local(0)), ast.Bin(ast.BinaryAdd, local(0), ast.Int(1))),
				ast.If(ast.Bin(ast.BinaryGreater, local(0), ast.Int(5)), stmts(ast.Break()), nil),
			),
			ast.Return(local(0)),
		)},
		{"repeat", ast.NewChunk("repeat",
			ast.Local(ids(0), ast.Int(0)),
			ast.Repeat(ast.Bin(ast.BinaryGreaterEq, local(0), ast.Int(3)),
				ast.Local(ids(1), local(0)),
				ast.Assign(exprs(local(0)), ast.Bin(ast.BinaryAdd, local(1), ast.Int(1))),
			),
			ast.Return(local(0)),
		)},
		{"closure_counter", ast.NewChunk("closure_counter",
			ast.Local(ids(0), ast.Int(0)),
			ast.LocalFunc(1, &ast.FuncBody{
				Name:   "inc",
				Params: ids(0),
				Upvals: []ast.Upval{{Name: "count", Kind: ast.UpvalLocal, Local: 0}},
				Block: ast.Block{Stmts: stmts(
					ast.Assign(exprs(ast.UpvalRef(0)), ast.Bin(ast.BinaryAdd, ast.UpvalRef(0), local(0))),
					ast.Return(ast.UpvalRef(0)),
				)},
			}),
			ast.CallStmt(ast.Call(local(1), ast.Int(1))),
			ast.Return(local(1)),
		)},
		{"nested_closure", ast.NewChunk("nested_closure",
			ast.Local(ids(0), ast.Str("x")),
			ast.Return(ast.Func(&ast.FuncBody{
				Name:   "outer",
				Upvals: []ast.Upval{{Name: "x", Kind: ast.UpvalLocal, Local: 0}},
				Block: ast.Block{Stmts: stmts(
					ast.Return(ast.Func(&ast.FuncBody{
						Name:   "inner",
						Upvals: []ast.Upval{{Name: "x", Kind: ast.UpvalOuter, Index: 0}},
						Block:  ast.Block{Stmts: stmts(ast.Return(ast.UpvalRef(0)))},
					})),
				)},
			})),
		)},
		{"goto_loop", ast.NewChunk("goto_loop",
			ast.Local(ids(0), ast.Int(0)),
			ast.LabelStmt("top"),
			ast.Assign(exprs(local(0)), ast.Bin(ast.BinaryAdd, local(0), ast.Int(1))),
			ast.If(ast.Bin(ast.BinaryLess, local(0), ast.Int(3)), stmts(ast.Goto("top")), nil),
			ast.Return(local(0)),
		)},
		{"goto_continue", ast.NewChunk("goto_continue",
			ast.NumericFor(0, ast.Int(1), ast.Int(2), nil,
				ast.If(local(0), stmts(ast.Goto("continue")), nil),
				ast.CallStmt(ast.Call(ast.Global("g1"))),
				ast.LabelStmt("continue"),
			),
			ast.NumericFor(1, ast.Int(1), ast.Int(2), nil,
				ast.Goto("continue"),
				ast.CallStmt(ast.Call(ast.Global("g2"))),
				ast.LabelStmt("continue"),
			),
		)},
		{"method_table", ast.NewChunk("method_table",
			ast.Local(ids(0), ast.Table(ast.Keyed(ast.Str("n"), ast.Int(0)), ast.Item(ast.VarArgs()))),
			ast.CallStmt(ast.MethodCall(local(0), "push", ast.Int(1), ast.VarArgs())),
			ast.Return(ast.Un(ast.UnaryLen, local(0))),
		)},
		{"dead_closure", ast.NewChunk("dead_closure",
			ast.Local(ids(0), ast.Func(&ast.FuncBody{
				Name:  "unused",
				Block: ast.Block{Stmts: stmts(ast.Return(ast.Int(1)))},
			})),
			ast.Return(ast.Int(2)),
		)},
		{"varargs", ast.NewChunk("varargs",
			ast.Local(ids(0, 1), ast.VarArgs()),
			ast.Return(ast.Call(ast.Global("select"), ast.Str("#"), ast.VarArgs()), local(0), local(1)),
		)},
		{"if_chain", ast.NewChunk("if_chain",
			ast.Local(ids(0), ast.Call(ast.Global("g"))),
			ast.Stmt{Kind: ast.StmtIf, If: &ast.IfStmt{
				Clauses: []ast.IfClause{
					{Cond: ast.Bin(ast.BinaryEq, local(0), ast.Int(1)), Body: ast.Block{Stmts: stmts(ast.Return(ast.Str("a")))}},
					{Cond: ast.Bin(ast.BinaryEq, local(0), ast.Int(2)), Body: ast.Block{Stmts: stmts(ast.Return(ast.Str("b")))}},
				},
				Else: &ast.Block{Stmts: stmts(ast.Return(ast.Str("c")))},
			}},
		)},
		{"nil_branch", ast.NewChunk("nil_branch",
			ast.Local(ids(0), ast.Nil()),
			ast.If(local(0), stmts(ast.Return(ast.Int(1))), stmts(ast.Return(ast.Int(2)))),
		)},
		{"globals", ast.NewChunk("globals",
			ast.Assign(exprs(ast.Global("a"), ast.Global("b")), ast.Global("b"), ast.Global("a")),
			ast.CallStmt(ast.Call(ast.Global("print"), ast.Bin(ast.BinaryConcat, ast.Str("n="), ast.Int(3)))),
		)},
	}
	return progs
}

// Find returns the corpus program called name, or nil.
func Find(name string) *ast.Chunk {
	for _, p := range Corpus() {
		if p.Name == name {
			return p.Chunk
		}
	}
	return nil
}

func ptr(e ast.Expr) *ast.Expr { return &e }
