// Package staleness decides whether a compiled output must be rebuilt from
// its source.
package staleness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oriys/lambdadev/internal/cache"
	"github.com/oriys/lambdadev/internal/pkg/fsutil"
)

// Oracle reports whether an existing output is out of date with respect to
// its source. Callers treat a missing output as stale before asking.
type Oracle interface {
	Stale(ctx context.Context, sourcePath, outputPath string) (bool, error)

	// Record is called after outputPath was successfully rebuilt from
	// sourcePath.
	Record(ctx context.Context, sourcePath, outputPath string) error
}

// New returns the oracle for a strategy name: "mtime" (default) or "digest".
// The digest strategy keeps its records in store.
func New(strategy string, store cache.Cache) (Oracle, error) {
	switch strategy {
	case "", "mtime":
		return ModTimeOracle{}, nil
	case "digest":
		if store == nil {
			return nil, fmt.Errorf("digest strategy requires a store")
		}
		return NewDigestOracle(store), nil
	default:
		return nil, fmt.Errorf("unknown staleness strategy: %s", strategy)
	}
}

// ModTimeOracle compares modification times: the output is stale when the
// source was modified strictly after it.
type ModTimeOracle struct{}

func (ModTimeOracle) Stale(_ context.Context, sourcePath, outputPath string) (bool, error) {
	src, err := os.Stat(sourcePath)
	if err != nil {
		return false, err
	}
	out, err := os.Stat(outputPath)
	if err != nil {
		return false, err
	}
	return src.ModTime().After(out.ModTime()), nil
}

func (ModTimeOracle) Record(context.Context, string, string) error { return nil }

// DigestOracle compares the source's content digest with the digest recorded
// when the output was last built. It ignores timestamps entirely, so touching
// a file or clock skew does not force a rebuild.
type DigestOracle struct {
	store cache.Cache
}

func NewDigestOracle(store cache.Cache) *DigestOracle {
	return &DigestOracle{store: store}
}

// digestKey keys records by absolute output path so processes started from
// different working directories share them.
func digestKey(outputPath string) string {
	if abs, err := filepath.Abs(outputPath); err == nil {
		outputPath = abs
	}
	return "digest:" + filepath.ToSlash(outputPath)
}

func (o *DigestOracle) Stale(ctx context.Context, sourcePath, outputPath string) (bool, error) {
	sum, err := fsutil.HashFile(sourcePath)
	if err != nil {
		return false, err
	}
	recorded, err := o.store.Get(ctx, digestKey(outputPath))
	if errors.Is(err, cache.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("read digest: %w", err)
	}
	return string(recorded) != sum, nil
}

func (o *DigestOracle) Record(ctx context.Context, sourcePath, outputPath string) error {
	sum, err := fsutil.HashFile(sourcePath)
	if err != nil {
		return err
	}
	if err := o.store.Set(ctx, digestKey(outputPath), []byte(sum)); err != nil {
		return fmt.Errorf("write digest: %w", err)
	}
	return nil
}
