package mir

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
)

// DumpOptions configures MIR dumping.
type DumpOptions struct {
	// Color highlights labels, opcodes and constants with ANSI escapes.
	Color bool
}

type palette struct {
	label *color.Color
	op    *color.Color
	konst *color.Color
	fn    *color.Color
}

func newPalette(opts DumpOptions) palette {
	p := palette{
		label: color.New(color.FgYellow, color.Bold),
		op:    color.New(color.FgCyan),
		konst: color.New(color.FgGreen),
		fn:    color.New(color.FgMagenta, color.Bold),
	}
	for _, c := range []*color.Color{p.label, p.op, p.konst, p.fn} {
		if opts.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// DumpModule writes a human-readable representation of a MIR module.
func DumpModule(w io.Writer, m *Module, opts DumpOptions) error {
	if w == nil || m == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "funcs=%d\n", len(m.Funcs)); err != nil {
		return err
	}
	for _, id := range m.IDs() {
		if err := DumpFunc(w, m.Funcs[id], opts); err != nil {
			return err
		}
	}
	return nil
}

// DumpFunc writes one function.
func DumpFunc(w io.Writer, f *Func, opts DumpOptions) error {
	if w == nil || f == nil {
		return nil
	}
	p := newPalette(opts)
	var sb strings.Builder

	params := make([]string, 0, len(f.Params)+1)
	for _, x := range f.Params {
		params = append(params, x.String())
	}
	if f.VarArgs {
		params = append(params, "...")
	}
	fmt.Fprintf(&sb, "\nfn %s(%s)", p.fn.Sprint(f.ID.String()), strings.Join(params, ", "))
	if f.Name != "" {
		fmt.Fprintf(&sb, " name=%s", f.Name)
	}
	if len(f.UpVars) > 0 {
		ups := make([]string, len(f.UpVars))
		for i, u := range f.UpVars {
			ups[i] = u.String()
		}
		fmt.Fprintf(&sb, " upvars=[%s]", strings.Join(ups, ", "))
	}
	fmt.Fprintf(&sb, " entry=%s:\n", f.Entry)

	for i := range f.Blocks {
		bb := &f.Blocks[i]
		fmt.Fprintf(&sb, "  %s:\n", p.label.Sprint(bb.Label.String()))
		for j := range bb.Instrs {
			fmt.Fprintf(&sb, "    %s\n", p.formatInstr(&bb.Instrs[j]))
		}
		fmt.Fprintf(&sb, "    %s\n", p.formatTerm(&bb.Term))
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// FormatInstr renders ins without color.
func FormatInstr(ins *Instr) string {
	return newPalette(DumpOptions{}).formatInstr(ins)
}

// FormatTerm renders t without color.
func FormatTerm(t *Terminator) string {
	return newPalette(DumpOptions{}).formatTerm(t)
}

func (p palette) formatInstr(ins *Instr) string {
	if ins == nil {
		return "<instr?>"
	}
	op := p.op.Sprint(ins.Kind.String())
	switch ins.Kind {
	case InstrLoadConst:
		return fmt.Sprintf("%s = %s %s", ins.LoadConst.Dst, op, p.konst.Sprint(ins.LoadConst.Const.Format()))
	case InstrLoadVar:
		return fmt.Sprintf("%s = %s %s", ins.LoadVar.Dst, op, ins.LoadVar.Src)
	case InstrStoreVar:
		fresh := ""
		if ins.StoreVar.Fresh {
			fresh = " fresh"
		}
		return fmt.Sprintf("%s%s %s = %s", op, fresh, ins.StoreVar.Dst, ins.StoreVar.Src)
	case InstrLoadUpVar:
		return fmt.Sprintf("%s = %s %s", ins.LoadUpVar.Dst, op, ins.LoadUpVar.Src)
	case InstrStoreUpVar:
		return fmt.Sprintf("%s %s = %s", op, ins.StoreUpVar.Dst, ins.StoreUpVar.Src)
	case InstrStorePhi:
		return fmt.Sprintf("%s %s = %s", op, ins.StorePhi.Dst, ins.StorePhi.Src)
	case InstrLoadPhi:
		return fmt.Sprintf("%s = %s %s", ins.LoadPhi.Dst, op, ins.LoadPhi.Src)
	case InstrNewTable:
		return fmt.Sprintf("%s = %s array=%d hash=%d", ins.NewTable.Dst, op, ins.NewTable.ArrayHint, ins.NewTable.HashHint)
	case InstrGetTable:
		return fmt.Sprintf("%s = %s %s[%s]", ins.GetTable.Dst, op, ins.GetTable.Table, ins.GetTable.Key)
	case InstrSetTable:
		return fmt.Sprintf("%s %s[%s] = %s", op, ins.SetTable.Table, ins.SetTable.Key, ins.SetTable.Value)
	case InstrAppendMulti:
		return fmt.Sprintf("%s %s[%d...] = %s", op, ins.AppendMulti.Table, ins.AppendMulti.Start, ins.AppendMulti.Src)
	case InstrBinOp:
		return fmt.Sprintf("%s = %s %s %s %s", ins.BinOp.Dst, op, ins.BinOp.Left, ins.BinOp.Op, ins.BinOp.Right)
	case InstrUnOp:
		return fmt.Sprintf("%s = %s %s%s", ins.UnOp.Dst, op, ins.UnOp.Op, ins.UnOp.Operand)
	case InstrToNumber:
		return fmt.Sprintf("%s = %s %s", ins.ToNumber.Dst, op, ins.ToNumber.Src)
	case InstrLoopEnd:
		return fmt.Sprintf("%s = %s %s, %s, %s", ins.LoopEnd.Dst, op, ins.LoopEnd.Index, ins.LoopEnd.Limit, ins.LoopEnd.Step)
	case InstrCall:
		return fmt.Sprintf("%s = %s %s(%s)", ins.Call.Dst, op, ins.Call.Func, formatArgs(ins.Call.Args, ins.Call.Trailing))
	case InstrVarArgs:
		return fmt.Sprintf("%s = %s", ins.VarArgs.Dst, op)
	case InstrProject:
		return fmt.Sprintf("%s = %s %s[%d]", ins.Project.Dst, op, ins.Project.Src, ins.Project.Index)
	case InstrClosure:
		caps := make([]string, len(ins.Closure.Captures))
		for i, c := range ins.Closure.Captures {
			if c.Kind == CaptureVar {
				caps[i] = c.Var.String()
			} else {
				caps[i] = c.UpVar.String()
			}
		}
		return fmt.Sprintf("%s = %s %s [%s]", ins.Closure.Dst, op, p.fn.Sprint(ins.Closure.Func.String()), strings.Join(caps, ", "))
	case InstrCPUAccount:
		return fmt.Sprintf("%s %d", op, ins.CPUAccount.Cost)
	default:
		return "<instr?>"
	}
}

func (p palette) formatTerm(t *Terminator) string {
	op := p.op.Sprint(t.Kind.String())
	switch t.Kind {
	case TermJump:
		return fmt.Sprintf("%s %s", op, p.label.Sprint(t.Jump.Target.String()))
	case TermBranch:
		return fmt.Sprintf("%s %s ? %s : %s", op, t.Branch.Cond,
			p.label.Sprint(t.Branch.Then.String()), p.label.Sprint(t.Branch.Else.String()))
	case TermReturn:
		return fmt.Sprintf("%s %s", op, formatArgs(t.Return.Values, t.Return.Trailing))
	case TermTailCall:
		return fmt.Sprintf("%s %s(%s)", op, t.TailCall.Func, formatArgs(t.TailCall.Args, t.TailCall.Trailing))
	default:
		return "<unterminated>"
	}
}

func formatArgs(args []Val, trailing MultiVal) string {
	parts := make([]string, 0, len(args)+1)
	for _, a := range args {
		parts = append(parts, a.String())
	}
	if trailing != NoMultiVal {
		parts = append(parts, trailing.String()+"...")
	}
	return strings.Join(parts, ", ")
}

// FormatLabels renders a label list like "[bb0 bb2]".
func FormatLabels(ls []Label) string {
	parts := make([]string, len(ls))
	for i, l := range ls {
		parts[i] = "bb" + strconv.Itoa(int(l))
	}
	return "[" + strings.Join(parts, " ") + "]"
}
