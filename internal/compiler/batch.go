package compiler

import (
	"context"
	"errors"
	"fmt"

	"github.com/oriys/lambdadev/internal/domain"
	"github.com/oriys/lambdadev/internal/logging"
	"github.com/oriys/lambdadev/internal/module"
)

// BatchResult lists the outcome of a Batch run.
type BatchResult struct {
	Compiled []*domain.FunctionModule
	Failed   []*domain.FunctionModule
}

// Batch compiles every source file directly inside srcDir whose extension
// is in exts into outDir, unconditionally and one module at a time. A
// failing module does not stop the run: all failures are joined into the
// returned error. Cancelling ctx stops before the next module.
func (c *Compiler) Batch(ctx context.Context, srcDir, outDir string, exts []string) (*BatchResult, error) {
	mods, err := module.Modules(srcDir, outDir, exts)
	if err != nil {
		return nil, err
	}

	res := &BatchResult{}
	var errs []error
	for _, mod := range mods {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := c.Compile(ctx, mod.SourcePath, mod.OutputPath); err != nil {
			res.Failed = append(res.Failed, mod)
			errs = append(errs, err)
			continue
		}
		res.Compiled = append(res.Compiled, mod)
	}

	logging.Op().Info("batch compile finished",
		"source_dir", srcDir, "compiled", len(res.Compiled), "failed", len(res.Failed))
	if len(errs) > 0 {
		return res, fmt.Errorf("%d of %d modules failed: %w", len(res.Failed), len(mods), errors.Join(errs...))
	}
	return res, nil
}
