package ast

// Constructors below keep hand-written trees short in tests and tools.

func Nil() Expr { return Expr{Kind: ExprNil} }
func True() Expr { return Expr{Kind: ExprTrue} }
func False() Expr { return Expr{Kind: ExprFalse} }
func Int(v int64) Expr { return Expr{Kind: ExprInt, Int: v} }
func Float(v float64) Expr { return Expr{Kind: ExprFloat, Float: v} }
func Str(s string) Expr { return Expr{Kind: ExprString, Str: s} }
func VarArgs() Expr { return Expr{Kind: ExprVarArgs} }
func LocalRef(id LocalID) Expr { return Expr{Kind: ExprLocal, Local: id} }
func UpvalRef(i int32) Expr { return Expr{Kind: ExprUpval, Upval: i} }

// Index builds obj[key].
func Index(obj, key Expr) Expr {
	return Expr{Kind: ExprIndex, Index: &IndexExpr{Object: obj, Key: key}}
}

// Global builds a global access through the environment upvalue of the root chunk.
func Global(name string) Expr {
	return Index(UpvalRef(0), Str(name))
}

// Call builds fn(args...).
func Call(fn Expr, args ...Expr) Expr {
	return Expr{Kind: ExprCall, Call: &CallExpr{Func: fn, Args: args}}
}

// MethodCall builds obj:name(args...).
func MethodCall(obj Expr, name string, args ...Expr) Expr {
	return Expr{Kind: ExprCall, Call: &CallExpr{Func: obj, Method: name, Args: args}}
}

// Bin builds l op r.
func Bin(op BinaryOp, l, r Expr) Expr {
	return Expr{Kind: ExprBinary, Binary: &BinaryExpr{Op: op, Left: l, Right: r}}
}

// Un builds op x.
func Un(op UnaryOp, x Expr) Expr {
	return Expr{Kind: ExprUnary, Unary: &UnaryExpr{Op: op, Operand: x}}
}

// Paren builds (x).
func Paren(x Expr) Expr {
	return Expr{Kind: ExprParen, Paren: &x}
}

// Func builds a function literal.
func Func(body *FuncBody) Expr {
	return Expr{Kind: ExprFunc, Func: body}
}

// Table builds a table constructor.
func Table(fields ...Field) Expr {
	return Expr{Kind: ExprTable, Table: &TableExpr{Fields: fields}}
}

// Item builds a positional table field.
func Item(v Expr) Field { return Field{Kind: FieldPositional, Value: v} }

// Keyed builds a [k] = v table field.
func Keyed(k, v Expr) Field { return Field{Kind: FieldKeyed, Key: k, Value: v} }

// Local builds local names... = values....
func Local(names []LocalID, values ...Expr) Stmt {
	return Stmt{Kind: StmtLocal, Local: &LocalStmt{Names: names, Values: values}}
}

// Assign builds targets... = values....
func Assign(targets []Expr, values ...Expr) Stmt {
	return Stmt{Kind: StmtAssign, Assign: &AssignStmt{Targets: targets, Values: values}}
}

// CallStmt wraps a call expression as a statement.
func CallStmt(call Expr) Stmt {
	return Stmt{Kind: StmtCall, Call: &call}
}

// Return builds return values....
func Return(values ...Expr) Stmt {
	return Stmt{Kind: StmtReturn, Return: values}
}

// If builds a single-clause if statement with an optional else.
func If(cond Expr, then []Stmt, els []Stmt) Stmt {
	st := Stmt{Kind: StmtIf, If: &IfStmt{Clauses: []IfClause{{Cond: cond, Body: Block{Stmts: then}}}}}
	if els != nil {
		st.If.Else = &Block{Stmts: els}
	}
	return st
}

// While builds while cond do body end.
func While(cond Expr, body ...Stmt) Stmt {
	return Stmt{Kind: StmtWhile, While: &WhileStmt{Cond: cond, Body: Block{Stmts: body}}}
}

// Repeat builds repeat body until cond.
func Repeat(cond Expr, body ...Stmt) Stmt {
	return Stmt{Kind: StmtRepeat, Repeat: &RepeatStmt{Cond: cond, Body: Block{Stmts: body}}}
}

// NumericFor builds for v = init, limit, step do body end. step may be nil.
func NumericFor(v LocalID, init, limit Expr, step *Expr, body ...Stmt) Stmt {
	return Stmt{Kind: StmtNumericFor, NumericFor: &NumericForStmt{
		Var: v, Init: init, Limit: limit, Step: step, Body: Block{Stmts: body},
	}}
}

// GenericFor builds for vars... in exprs... do body end.
func GenericFor(vars []LocalID, exprs []Expr, body ...Stmt) Stmt {
	return Stmt{Kind: StmtGenericFor, GenericFor: &GenericForStmt{Vars: vars, Exprs: exprs, Body: Block{Stmts: body}}}
}

// Do builds do body end.
func Do(body ...Stmt) Stmt {
	return Stmt{Kind: StmtDo, Do: &Block{Stmts: body}}
}

func Break() Stmt { return Stmt{Kind: StmtBreak} }
func Goto(label string) Stmt { return Stmt{Kind: StmtGoto, Label: label} }
func LabelStmt(label string) Stmt { return Stmt{Kind: StmtLabel, Label: label} }

// LocalFunc builds local function name body.
func LocalFunc(name LocalID, body *FuncBody) Stmt {
	return Stmt{Kind: StmtLocalFunc, LocalFunc: &LocalFuncStmt{Name: name, Func: body}}
}

// NewChunk wraps statements into a vararg root chunk with the environment upvalue.
func NewChunk(name string, stmts ...Stmt) *Chunk {
	return &Chunk{
		Name: name,
		Body: &FuncBody{
			Name:    name,
			VarArgs: true,
			Upvals:  []Upval{{Name: "_ENV", Kind: UpvalEnv}},
			Block:   Block{Stmts: stmts},
		},
	}
}
