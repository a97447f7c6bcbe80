package opt

import (
	"fortio.org/safecast"

	"moonc/internal/config"
	"moonc/internal/mir"
)

// AccountCPU makes every block start with exactly one CPUAccount charging the
// rest of the block plus its terminator. CPUAccountingOff strips them all.
func AccountCPU(f *mir.Func, mode config.CPUAccountingMode) *mir.Func {
	if accounted(f, mode) {
		return f
	}
	out := mir.Clone(f)
	for i := range out.Blocks {
		bb := &out.Blocks[i]
		body := make([]mir.Instr, 0, len(bb.Instrs)+1)
		if mode == config.CPUAccountingPerBlock {
			body = append(body, mir.Instr{Kind: mir.InstrCPUAccount})
		}
		for _, ins := range bb.Instrs {
			if ins.Kind != mir.InstrCPUAccount {
				body = append(body, ins)
			}
		}
		if mode == config.CPUAccountingPerBlock {
			body[0].CPUAccount.Cost = blockCost(len(body))
		}
		bb.Instrs = body
	}
	return out
}

// blockCost is the charge for a block of n instructions including its
// accounting instruction: n-1 body instructions plus the terminator.
func blockCost(n int) int32 {
	c, err := safecast.Conv[int32](n)
	if err != nil {
		panic(err)
	}
	return c
}

func accounted(f *mir.Func, mode config.CPUAccountingMode) bool {
	for i := range f.Blocks {
		bb := &f.Blocks[i]
		for j := range bb.Instrs {
			if bb.Instrs[j].Kind != mir.InstrCPUAccount {
				continue
			}
			if mode != config.CPUAccountingPerBlock || j != 0 {
				return false
			}
		}
		if mode == config.CPUAccountingPerBlock {
			if len(bb.Instrs) == 0 || bb.Instrs[0].Kind != mir.InstrCPUAccount {
				return false
			}
			if bb.Instrs[0].CPUAccount.Cost != blockCost(len(bb.Instrs)) {
				return false
			}
		}
	}
	return true
}
