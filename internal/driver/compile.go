// Package driver runs the middle end over whole chunks: translation,
// optimization, analysis, slot allocation and module assembly.
package driver

import (
	"context"
	"fmt"
	"time"

	"moonc/internal/analysis"
	"moonc/internal/assemble"
	"moonc/internal/ast"
	"moonc/internal/config"
	"moonc/internal/mir"
	"moonc/internal/observ"
	"moonc/internal/opt"
	"moonc/internal/slots"
	"moonc/internal/trace"
)

// Options configure one compile.
type Options struct {
	Config config.Options
	// Timer, if set, receives one phase per pipeline step.
	Timer    *observ.Timer
	Observer PhaseObserver
}

// FuncResult is everything the emitter needs for one function.
type FuncResult struct {
	Func  *mir.Func
	Slots *slots.Alloc
	Types *analysis.TypeInfo
	Deps  analysis.Deps
	Stats opt.Stats
}

// Result is a compiled chunk. Funcs holds only functions reachable from the
// root; Order lists them by FunctionID.
type Result struct {
	Name    string
	Root    mir.FunctionID
	Funcs   map[mir.FunctionID]*FuncResult
	Order   []mir.FunctionID
	Dropped []mir.FunctionID
}

// Compile runs the whole pipeline over chunk. A chunk compiles sequentially;
// use CompileBatch for several chunks at once.
func Compile(ctx context.Context, chunk *ast.Chunk, opts Options) (*Result, error) {
	if chunk == nil || chunk.Body == nil {
		return nil, fmt.Errorf("driver: %w: empty chunk", mir.ErrMalformed)
	}
	tr := trace.FromContext(ctx)
	span := trace.Begin(tr, trace.ScopeDriver, "compile "+chunk.Name, trace.CurrentSpan(ctx).SpanID)
	ctx = trace.WithSpan(ctx, span)

	p := &pipeline{ctx: ctx, chunk: chunk.Name, opts: opts, parent: span.ID()}
	res, err := p.run(chunk)
	if err != nil {
		span.End(err.Error())
		return nil, fmt.Errorf("%s: %w", chunk.Name, err)
	}
	span.WithExtra("funcs", fmt.Sprint(len(res.Order))).End("")
	return res, nil
}

type pipeline struct {
	ctx    context.Context
	chunk  string
	opts   Options
	parent uint64
}

// phase wraps fn in a trace span, a timer phase and observer events.
func (p *pipeline) phase(name string, fn func(ctx context.Context) (string, error)) error {
	if err := p.ctx.Err(); err != nil {
		return err
	}
	span := trace.Begin(trace.FromContext(p.ctx), trace.ScopePass, name, p.parent)
	idx := -1
	if p.opts.Timer != nil {
		idx = p.opts.Timer.Begin(p.chunk + ": " + name)
	}
	if p.opts.Observer != nil {
		p.opts.Observer(PhaseEvent{Chunk: p.chunk, Name: name, Status: PhaseStart})
	}
	start := time.Now()

	note, err := fn(trace.WithSpan(p.ctx, span))

	if p.opts.Observer != nil {
		p.opts.Observer(PhaseEvent{Chunk: p.chunk, Name: name, Status: PhaseEnd, Elapsed: time.Since(start)})
	}
	if p.opts.Timer != nil {
		p.opts.Timer.End(idx, note)
	}
	if err != nil {
		span.End(err.Error())
		return err
	}
	span.End(note)
	return nil
}

func (p *pipeline) run(chunk *ast.Chunk) (*Result, error) {
	var m *mir.Module
	err := p.phase("lower", func(context.Context) (string, error) {
		var err error
		if m, err = mir.LowerChunk(chunk); err != nil {
			return "", err
		}
		if err = mir.Validate(m); err != nil {
			return "", fmt.Errorf("%w: %w", analysis.ErrInternal, err)
		}
		return fmt.Sprintf("%d funcs", len(m.Funcs)), nil
	})
	if err != nil {
		return nil, err
	}

	res := &Result{Name: chunk.Name, Root: m.Root, Funcs: make(map[mir.FunctionID]*FuncResult, len(m.Funcs))}
	ids := m.IDs()

	err = p.phase("optimize", func(ctx context.Context) (string, error) {
		before, after := 0, 0
		for _, id := range ids {
			f, stats, err := opt.Optimize(ctx, m.Funcs[id], p.opts.Config)
			if err != nil {
				return "", err
			}
			before += stats.Before
			after += stats.After
			res.Funcs[id] = &FuncResult{Func: f, Stats: stats, Deps: analysis.Dependencies(f)}
		}
		return fmt.Sprintf("%d -> %d instrs", before, after), nil
	})
	if err != nil {
		return nil, err
	}

	err = p.phase("assemble", func(context.Context) (string, error) {
		units := make([]assemble.Unit, 0, len(ids))
		for _, id := range ids {
			units = append(units, assemble.Unit{ID: id, Deps: res.Funcs[id].Deps})
		}
		order, err := assemble.Reachable(m.Root, units)
		if err != nil {
			return "", err
		}
		res.Order = order
		keep := make(map[mir.FunctionID]bool, len(order))
		for _, id := range order {
			keep[id] = true
		}
		for _, id := range ids {
			if !keep[id] {
				res.Dropped = append(res.Dropped, id)
				delete(res.Funcs, id)
			}
		}
		return fmt.Sprintf("%d kept, %d dropped", len(order), len(res.Dropped)), nil
	})
	if err != nil {
		return nil, err
	}

	err = p.phase("allocate", func(context.Context) (string, error) {
		frames := 0
		for _, id := range res.Order {
			fr := res.Funcs[id]
			types, err := analysis.InferTypes(fr.Func)
			if err != nil {
				return "", err
			}
			lv, err := analysis.ComputeLiveness(fr.Func)
			if err != nil {
				return "", err
			}
			alloc, err := slots.Allocate(fr.Func, lv)
			if err != nil {
				return "", err
			}
			fr.Types, fr.Slots = types, alloc
			frames += alloc.Size
		}
		return fmt.Sprintf("%d slots", frames), nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
