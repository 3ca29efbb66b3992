// Package llvm lowers a validated MidIR module to LLVM IR through the
// system installed LLVM runtime. The single-threaded preamble freezes the
// type table, the GC header table and the declaration table; function
// bodies are then lowered against those read-only tables, with the pure CFG
// analysis fanned out over worker goroutines.
package llvm

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
	"tinygo.org/x/go-llvm"

	"midlc/src/ir"
	"midlc/src/ir/cfg"
	"midlc/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Result is a lowered module together with the context owning its handles.
// The caller assumes ownership and must call Dispose exactly once.
type Result struct {
	Ctx llvm.Context
	Mod llvm.Module
}

// ---------------------
// ----- functions -----
// ---------------------

// Dispose releases the module and its owning context.
func (r *Result) Dispose() {
	r.Mod.Dispose()
	r.Ctx.Dispose()
}

// ToLLVM lowers module m into a fresh LLVM module. On success the returned
// Result is ready for verification, bitcode writing or further passes.
func ToLLVM(opt util.Options, m *ir.Module) (*Result, error) {
	ctx := llvm.NewContext()
	mod := ctx.NewModule(m.Name)
	res := &Result{Ctx: ctx, Mod: mod}
	if err := lowerModule(opt, m, ctx, mod); err != nil {
		res.Dispose()
		return nil, err
	}
	return res, nil
}

// lowerModule runs the lowering pipeline against an existing context and
// module pair.
func lowerModule(opt util.Options, m *ir.Module, ctx llvm.Context, mod llvm.Module) error {
	tt, err := materialiseTypes(ctx, m)
	if err != nil {
		return err
	}
	typedesc, descs := emitGCHeaders(ctx, mod, m)
	dt, err := emitDecls(mod, m, tt)
	if err != nil {
		return err
	}
	if _, err := emitAccessors(ctx, mod, m, tt); err != nil {
		return err
	}
	genMetadata(ctx, mod, m, typedesc, descs)

	funcs := m.Funcs()
	if len(funcs) == 0 {
		return nil
	}

	// The φ placement is pure CFG analysis: plan every function on the
	// worker group, then emit serially. The LLVM context and builder are
	// single-owner and must not be touched concurrently. Workers report
	// into the error collector so a bad function does not hide the next.
	plans := make([]cfg.PhiPlan, len(funcs))
	pe := util.NewPerror(len(funcs))
	g := errgroup.Group{}
	g.SetLimit(util.ClampThreads(opt.Threads))
	for i1 := range funcs {
		i1 := i1
		g.Go(func() error {
			f := m.Globals[funcs[i1]].Func
			graph, err := cfg.New(f)
			if err != nil {
				pe.Append(fmt.Errorf("function %s: %w", m.Globals[funcs[i1]].Name, err))
				return nil
			}
			plans[i1] = cfg.PlanPhis(graph)
			return nil
		})
	}
	_ = g.Wait()
	pe.Stop()
	if pe.Len() > 0 {
		errs := pe.Errors()
		if opt.Verbose {
			pe.Report()
		}
		if len(errs) > 1 {
			return fmt.Errorf("%w (and %d more)", errs[0], len(errs)-1)
		}
		return errs[0]
	}

	b := ctx.NewBuilder()
	defer b.Dispose()
	for i1, e1 := range funcs {
		if err := lowerFunction(ctx, b, m, tt, dt, e1, plans[i1]); err != nil {
			return fmt.Errorf("function %s: %w", m.Globals[e1].Name, err)
		}
	}
	return nil
}

// Compile lowers module m and renders it in the flavour requested by the
// options: textual IR, bitcode, or a target object file.
func Compile(opt util.Options, m *ir.Module) ([]byte, error) {
	res, err := ToLLVM(opt, m)
	if err != nil {
		return nil, err
	}
	defer res.Dispose()

	if opt.Verify {
		if err := llvm.VerifyModule(res.Mod, llvm.ReturnStatusAction); err != nil {
			return nil, fmt.Errorf("verifier rejected module %s: %w", m.Name, err)
		}
	}
	if opt.Verbose {
		util.PrintVerbose("lowered module %s: %d types, %d globals, %d GC headers",
			m.Name, len(m.Types), len(m.Globals), len(m.Headers))
	}

	switch opt.Emit {
	case "", "ir":
		return []byte(res.Mod.String()), nil
	case "bc":
		buf := llvm.WriteBitcodeToMemoryBuffer(res.Mod)
		defer buf.Dispose()
		out := make([]byte, len(buf.Bytes()))
		copy(out, buf.Bytes())
		return out, nil
	case "obj":
		return emitObject(opt, res.Mod)
	}
	return nil, fmt.Errorf("unexpected emit flavour %q", opt.Emit)
}

// emitObject compiles the module to a relocatable object for the requested
// target.
func emitObject(opt util.Options, mod llvm.Module) ([]byte, error) {
	llvm.InitializeAllTargetInfos()
	llvm.InitializeAllTargets()
	llvm.InitializeAllTargetMCs()
	llvm.InitializeAllAsmParsers()
	llvm.InitializeAllAsmPrinters()

	t, triple, err := targetTriple(opt)
	if err != nil {
		return nil, err
	}

	tm := t.CreateTargetMachine(triple, "generic", "",
		llvm.CodeGenLevelNone,
		llvm.RelocDefault,
		llvm.CodeModelDefault)
	defer tm.Dispose()

	td := tm.CreateTargetData()
	defer td.Dispose()
	mod.SetDataLayout(td.String())
	mod.SetTarget(tm.Triple())

	buf, err := tm.EmitToMemoryBuffer(mod, llvm.ObjectFile)
	if err != nil {
		return nil, err
	}
	if buf.IsNil() {
		return nil, errors.New("could not emit compiled code to memory")
	}
	defer buf.Dispose()
	out := make([]byte, len(buf.Bytes()))
	copy(out, buf.Bytes())
	return out, nil
}

// targetTriple builds an LLVM target triple from the options, reverting to
// the host default when no architecture was requested.
func targetTriple(opt util.Options) (llvm.Target, string, error) {
	var triple string
	if opt.TargetArch == util.UnknownArch {
		triple = llvm.DefaultTargetTriple()
	} else {
		sb := strings.Builder{}
		sb.Grow(20)

		switch opt.TargetArch {
		case util.Aarch64:
			sb.WriteString("aarch64")
		case util.Riscv64:
			sb.WriteString("riscv64")
		case util.X86_64:
			sb.WriteString("x86_64")
		default:
			return llvm.Target{}, "", fmt.Errorf("unsupported target architecture identifier %d",
				opt.TargetArch)
		}
		sb.WriteRune('-')

		// Target vendor. Defaults to PC.
		switch opt.TargetVendor {
		case util.Apple:
			sb.WriteString("apple")
		case util.IBM:
			sb.WriteString("ibm")
		default:
			sb.WriteString("pc")
		}
		sb.WriteRune('-')

		switch opt.TargetOS {
		case util.Linux:
			sb.WriteString("linux")
		case util.Windows:
			sb.WriteString("win32")
		case util.MAC:
			sb.WriteString("darwin")
		default:
			sb.WriteString("none")
		}

		sb.WriteRune('-')
		sb.WriteString("gnu")
		triple = sb.String()
	}

	tt, err := llvm.GetTargetFromTriple(triple)
	if err != nil {
		return llvm.Target{}, "", err
	}
	return tt, triple, nil
}
