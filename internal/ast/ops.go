package ast

// BinaryOp enumerates binary operator kinds.
type BinaryOp uint8

const (
	// Arithmetic

	// BinaryAdd represents the addition operator (+).
	BinaryAdd BinaryOp = iota
	// BinarySub represents the subtraction operator (-).
	BinarySub
	// BinaryMul represents the multiplication operator (*).
	BinaryMul
	// BinaryDiv represents the float division operator (/).
	BinaryDiv
	// BinaryIDiv represents the floor division operator (//).
	BinaryIDiv
	// BinaryMod represents the modulo operator (%).
	BinaryMod
	// BinaryPow represents the exponentiation operator (^).
	BinaryPow

	// Bitwise

	// BinaryBitAnd represents the bitwise AND operator (&).
	BinaryBitAnd
	// BinaryBitOr represents the bitwise OR operator (|).
	BinaryBitOr
	// BinaryBitXor represents the bitwise XOR operator (~).
	BinaryBitXor
	// BinaryShiftLeft represents the left shift operator (<<).
	BinaryShiftLeft
	BinaryShiftRight

	// BinaryConcat represents the string concatenation operator (..).
	BinaryConcat

	// Comparison

	// BinaryEq represents the equality operator (==).
	BinaryEq
	BinaryNotEq
	BinaryLess
	BinaryLessEq
	BinaryGreater
	BinaryGreaterEq

	// Short-circuit. These never reach the IR as operators.

	BinaryAnd
	BinaryOr
)

func (op BinaryOp) String() string {
	switch op {
	case BinaryAdd:
		return "+"
	case BinarySub:
		return "-"
	case BinaryMul:
		return "*"
	case BinaryDiv:
		return "/"
	case BinaryIDiv:
		return "//"
	case BinaryMod:
		return "%"
	case BinaryPow:
		return "^"
	case BinaryBitAnd:
		return "&"
	case BinaryBitOr:
		return "|"
	case BinaryBitXor:
		return "~"
	case BinaryShiftLeft:
		return "<<"
	case BinaryShiftRight:
		return ">>"
	case BinaryConcat:
		return ".."
	case BinaryEq:
		return "=="
	case BinaryNotEq:
		return "~="
	case BinaryLess:
		return "<"
	case BinaryLessEq:
		return "<="
	case BinaryGreater:
		return ">"
	case BinaryGreaterEq:
		return ">="
	case BinaryAnd:
		return "and"
	case BinaryOr:
		return "or"
	default:
		return "?"
	}
}

// IsComparison reports whether op always yields a boolean.
func (op BinaryOp) IsComparison() bool {
	return op >= BinaryEq && op <= BinaryGreaterEq
}

// IsBitwise reports whether op operates on integer representations.
func (op BinaryOp) IsBitwise() bool {
	return op >= BinaryBitAnd && op <= BinaryShiftRight
}

// UnaryOp enumerates unary operator kinds.
type UnaryOp uint8

const (
	// UnaryMinus represents arithmetic negation (-).
	UnaryMinus UnaryOp = iota
	// UnaryNot represents logical negation (not).
	UnaryNot
	// UnaryLen represents the length operator (#).
	UnaryLen
	// UnaryBitNot represents bitwise negation (~).
	UnaryBitNot
)

func (op UnaryOp) String() string {
	switch op {
	case UnaryMinus:
		return "-"
	case UnaryNot:
		return "not "
	case UnaryLen:
		return "#"
	case UnaryBitNot:
		return "~"
	default:
		return "?"
	}
}
