// Package ast defines the name-resolved syntax tree consumed by the middle end.
//
// The tree is produced by the external parser and resolver. Every variable
// reference is already classified as a local of the enclosing function or an
// upvalue captured from an outer one, and every goto names a label that exists
// in the same function. Label names are unique per function. Globals arrive as
// index expressions on the environment upvalue.
//
// Nodes are tagged structs: Kind selects which payload field is meaningful.
// This keeps the tree encodable with msgpack without interface registries.
package ast

// LocalID identifies a local variable within one function body.
type LocalID int32

// Chunk is one compilation unit: the root function of a module.
type Chunk struct {
	Name string
	Body *FuncBody
}

// UpvalKind says where a captured variable lives in the enclosing function.
type UpvalKind uint8

const (
	// UpvalLocal captures a local of the directly enclosing function.
	UpvalLocal UpvalKind = iota
	// UpvalOuter re-captures an upvalue of the directly enclosing function.
	UpvalOuter
	// UpvalEnv is the environment slot of the root chunk; it has no enclosing function.
	UpvalEnv
)

// Upval describes one captured variable, in capture order.
type Upval struct {
	Name  string
	Kind  UpvalKind
	Local LocalID // for UpvalLocal
	Index int32   // for UpvalOuter
}

// FuncBody is a function literal or the chunk body.
type FuncBody struct {
	Name    string
	Line    int32
	Params  []LocalID
	VarArgs bool
	Upvals  []Upval
	Block   Block
}

// Block is a sequence of statements with its own scope.
type Block struct {
	Stmts []Stmt
}

// StmtKind enumerates statement kinds.
type StmtKind uint8

const (
	// StmtLocal declares locals: local a, b = e1, e2.
	StmtLocal StmtKind = iota
	// StmtAssign assigns to locals, upvalues or table fields.
	StmtAssign
	// StmtCall evaluates a call for its effects.
	StmtCall
	// StmtDo opens a nested block.
	StmtDo
	StmtWhile
	StmtRepeat
	StmtIf
	// StmtNumericFor is for v = init, limit[, step] do ... end.
	StmtNumericFor
	// StmtGenericFor is for a, b in explist do ... end.
	StmtGenericFor
	StmtBreak
	StmtGoto
	StmtLabel
	StmtReturn
	// StmtLocalFunc is local function f() ... end; f is visible inside its body.
	StmtLocalFunc
)

// Stmt represents a statement node.
type Stmt struct {
	Kind StmtKind
	Line int32

	Local      *LocalStmt
	Assign     *AssignStmt
	Call       *Expr
	Do         *Block
	While      *WhileStmt
	Repeat     *RepeatStmt
	If         *IfStmt
	NumericFor *NumericForStmt
	GenericFor *GenericForStmt
	Label      string // goto target or label name
	Return     []Expr
	LocalFunc  *LocalFuncStmt
}

// LocalStmt declares Names and initializes them from Values.
type LocalStmt struct {
	Names  []LocalID
	Values []Expr
}

// AssignStmt stores Values into Targets. Targets are local, upvalue or index expressions.
type AssignStmt struct {
	Targets []Expr
	Values  []Expr
}

// WhileStmt loops while Cond is truthy.
type WhileStmt struct {
	Cond Expr
	Body Block
}

// RepeatStmt runs Body until Cond is truthy; Cond sees Body's locals.
type RepeatStmt struct {
	Body Block
	Cond Expr
}

// IfClause is one if/elseif arm.
type IfClause struct {
	Cond Expr
	Body Block
}

// IfStmt is a chain of clauses with an optional else block.
type IfStmt struct {
	Clauses []IfClause
	Else    *Block
}

// NumericForStmt is a numeric for loop. Step is nil when omitted.
type NumericForStmt struct {
	Var   LocalID
	Init  Expr
	Limit Expr
	Step  *Expr
	Body  Block
}

// GenericForStmt is an iterator-protocol for loop.
type GenericForStmt struct {
	Vars  []LocalID
	Exprs []Expr
	Body  Block
}

// LocalFuncStmt declares Name and binds it to Func.
type LocalFuncStmt struct {
	Name LocalID
	Func *FuncBody
}

// ExprKind enumerates expression kinds.
type ExprKind uint8

const (
	ExprNil ExprKind = iota
	ExprTrue
	ExprFalse
	// ExprInt is an integer literal in Int.
	ExprInt
	// ExprFloat is a float literal in Float.
	ExprFloat
	// ExprString is a string literal in Str.
	ExprString
	// ExprVarArgs is the ... expression.
	ExprVarArgs
	// ExprLocal references Local of the current function.
	ExprLocal
	// ExprUpval references upvalue number Upval of the current function.
	ExprUpval
	// ExprIndex is Index.Object[Index.Key].
	ExprIndex
	// ExprCall is a call; Call.Method is set for obj:m(...).
	ExprCall
	// ExprFunc is a function literal.
	ExprFunc
	ExprBinary
	ExprUnary
	// ExprTable is a table constructor.
	ExprTable
	// ExprParen is a parenthesized expression; it truncates multiple results.
	ExprParen
)

// Expr represents an expression node.
type Expr struct {
	Kind ExprKind
	Line int32

	Int   int64
	Float float64
	Str   string
	Local LocalID
	Upval int32

	Index  *IndexExpr
	Call   *CallExpr
	Func   *FuncBody
	Binary *BinaryExpr
	Unary  *UnaryExpr
	Table  *TableExpr
	Paren  *Expr
}

// IndexExpr is a table access.
type IndexExpr struct {
	Object Expr
	Key    Expr
}

// CallExpr is a function or method call.
type CallExpr struct {
	Func   Expr
	Method string
	Args   []Expr
}

// BinaryExpr applies Op to Left and Right.
type BinaryExpr struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

// UnaryExpr applies Op to Operand.
type UnaryExpr struct {
	Op      UnaryOp
	Operand Expr
}

// FieldKind distinguishes table constructor entries.
type FieldKind uint8

const (
	// FieldPositional is an array-part entry.
	FieldPositional FieldKind = iota
	// FieldKeyed is [k] = v or name = v.
	FieldKeyed
)

// Field is one table constructor entry.
type Field struct {
	Kind  FieldKind
	Key   Expr
	Value Expr
}

// TableExpr is a table constructor.
type TableExpr struct {
	Fields []Field
}

// IsMulti reports whether e may produce a variable number of values.
func (e *Expr) IsMulti() bool {
	return e != nil && (e.Kind == ExprCall || e.Kind == ExprVarArgs)
}
