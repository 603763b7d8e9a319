// Package compiler transpiles function sources into CommonJS modules that
// the artifact engine can load.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"golang.org/x/sync/singleflight"

	"github.com/oriys/lambdadev/internal/domain"
	"github.com/oriys/lambdadev/internal/logging"
	"github.com/oriys/lambdadev/internal/metrics"
	"github.com/oriys/lambdadev/internal/observability"
	"github.com/oriys/lambdadev/internal/pkg/fsutil"
)

// DefaultNodeTarget is the runtime version syntax is lowered for.
const DefaultNodeTarget = "8.10"

// configFiles are looked up, in order, in the compiler scope.
var configFiles = []string{"tsconfig.json", "jsconfig.json"}

// Options configures a Compiler.
type Options struct {
	// Scope is the directory searched for a project-local tsconfig.json or
	// jsconfig.json, usually the functions source directory.
	Scope string

	// NodeTarget is the Node.js version the output must run on.
	NodeTarget string

	Metrics *metrics.Metrics
}

// Compiler turns a source file into a compiled artifact on disk.
type Compiler struct {
	opts  Options
	group singleflight.Group
}

// New creates a Compiler.
func New(opts Options) *Compiler {
	if opts.NodeTarget == "" {
		opts.NodeTarget = DefaultNodeTarget
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Global()
	}
	return &Compiler{opts: opts}
}

// Compile transpiles sourcePath and writes the result to outputPath,
// replacing any previous content. On failure it returns a
// *domain.CompileError and outputPath is left untouched. Concurrent calls
// for the same outputPath share a single compilation.
func (c *Compiler) Compile(ctx context.Context, sourcePath, outputPath string) error {
	_, err, _ := c.group.Do(outputPath, func() (any, error) {
		return nil, c.compile(ctx, sourcePath, outputPath)
	})
	return err
}

func (c *Compiler) compile(ctx context.Context, sourcePath, outputPath string) error {
	name := domain.NameFromSource(sourcePath)
	_, span := observability.StartSpan(ctx, "compile",
		observability.AttrFunctionName.String(name),
		observability.AttrSourcePath.String(sourcePath),
		observability.AttrOutputPath.String(outputPath),
	)
	defer span.End()

	logging.Op().Info("compile module", "source", sourcePath, "output", outputPath)
	start := time.Now()

	code, err := c.Transform(sourcePath)
	if err == nil {
		err = fsutil.WriteFileAtomic(outputPath, code, 0644)
	}
	c.opts.Metrics.RecordCompile(name, time.Since(start).Milliseconds(), err == nil)

	if err != nil {
		observability.SetSpanError(span, err)
		logging.Op().Error("compilation failed", "source", sourcePath, "error", err)
		return &domain.CompileError{Source: sourcePath, Err: err}
	}
	observability.SetSpanOK(span)
	return nil
}

// Transform returns the compiled code for sourcePath without writing it.
func (c *Compiler) Transform(sourcePath string) ([]byte, error) {
	src, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	tsconfig, err := c.projectConfig()
	if err != nil {
		return nil, err
	}

	result := api.Transform(string(src), api.TransformOptions{
		Loader:      loaderFor(sourcePath),
		Format:      api.FormatCommonJS,
		Platform:    api.PlatformNode,
		Engines:     []api.Engine{{Name: api.EngineNode, Version: c.opts.NodeTarget}},
		Sourcefile:  sourcePath,
		TsconfigRaw: tsconfig,
		Charset:     api.CharsetUTF8,
		LogLevel:    api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return nil, messagesError(result.Errors)
	}
	return result.Code, nil
}

// projectConfig returns the raw content of the first config file found in
// the scope, or "" when there is none.
func (c *Compiler) projectConfig() (string, error) {
	if c.opts.Scope == "" {
		return "", nil
	}
	for _, name := range configFiles {
		data, err := os.ReadFile(filepath.Join(c.opts.Scope, name))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("read %s: %w", name, err)
		}
		return string(data), nil
	}
	return "", nil
}

func loaderFor(path string) api.Loader {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".mts", ".cts":
		return api.LoaderTS
	default:
		return api.LoaderJS
	}
}

func messagesError(msgs []api.Message) error {
	first := msgs[0]
	text := first.Text
	if loc := first.Location; loc != nil {
		text = fmt.Sprintf("%s:%d:%d: %s", loc.File, loc.Line, loc.Column, first.Text)
	}
	if len(msgs) > 1 {
		text = fmt.Sprintf("%s (and %d more errors)", text, len(msgs)-1)
	}
	return errors.New(text)
}
