// Package artifact loads compiled function modules into an embedded
// JavaScript runtime and invokes their handlers.
package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/buffer"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/process"
	"github.com/dop251/goja_nodejs/require"
	"github.com/dop251/goja_nodejs/url"

	"github.com/oriys/lambdadev/internal/domain"
	"github.com/oriys/lambdadev/internal/logging"
)

// ErrClosed is returned by Invoke after Close.
var ErrClosed = errors.New("artifact closed")

const (
	moduleHeader = "(function (exports, require, module, __filename, __dirname) {"
	moduleFooter = "\n})"
)

// Artifact is a compiled module loaded into its own event loop. All calls
// into the module run on that loop, so module-level state survives between
// invocations and is never touched concurrently.
type Artifact struct {
	path    string
	modTime time.Time
	size    int64

	loop    *eventloop.EventLoop
	handler goja.Callable // loop goroutine only

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
	once     sync.Once

	// aborted is cancelled by Abort; pending Invoke calls stop waiting.
	aborted context.Context
	abort   context.CancelFunc
}

type outcome struct {
	resp *domain.InvokeResponse
	err  error
}

// Load reads, evaluates and validates the compiled module at path. Any
// failure, including a module without a callable handler export, is a
// *domain.LoadError.
func Load(path string) (*Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &domain.LoadError{Path: path, Err: err}
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.LoadError{Path: path, Err: err}
	}
	prog, err := goja.Compile(path, moduleHeader+string(src)+moduleFooter, false)
	if err != nil {
		return nil, &domain.LoadError{Path: path, Err: err}
	}

	a := &Artifact{
		path:    path,
		modTime: info.ModTime(),
		size:    info.Size(),
		loop: eventloop.NewEventLoop(
			eventloop.WithRegistry(require.NewRegistry()),
			eventloop.EnableConsole(true),
		),
	}
	a.aborted, a.abort = context.WithCancel(context.Background())
	a.loop.Start()

	errc := make(chan error, 1)
	a.loop.RunOnLoop(func(vm *goja.Runtime) {
		enableGlobals(vm)
		errc <- a.evaluate(vm, prog)
	})
	if err := <-errc; err != nil {
		a.loop.Stop()
		a.abort()
		return nil, &domain.LoadError{Path: path, Err: err}
	}
	return a, nil
}

// enableGlobals installs the Node globals handlers commonly rely on:
// Buffer, process (env only) and URL/URLSearchParams.
func enableGlobals(vm *goja.Runtime) {
	buffer.Enable(vm)
	process.Enable(vm)
	url.Enable(vm)
}

func (a *Artifact) evaluate(vm *goja.Runtime, prog *goja.Program) error {
	v, err := vm.RunProgram(prog)
	if err != nil {
		return jsError(err)
	}
	wrapper, ok := goja.AssertFunction(v)
	if !ok {
		return errors.New("module wrapper is not callable")
	}

	module := vm.NewObject()
	exports := vm.NewObject()
	if err := module.Set("exports", exports); err != nil {
		return err
	}
	req := vm.Get("require")
	if req == nil {
		req = goja.Undefined()
	}
	_, err = wrapper(goja.Undefined(), exports, req, module,
		vm.ToValue(a.path), vm.ToValue(filepath.Dir(a.path)))
	if err != nil {
		return jsError(err)
	}

	exported := module.Get("exports")
	if exported == nil || goja.IsUndefined(exported) || goja.IsNull(exported) {
		return errors.New("module has no exports")
	}
	handler, ok := goja.AssertFunction(exported.ToObject(vm).Get("handler"))
	if !ok {
		return errors.New("module does not export a handler function")
	}
	a.handler = handler
	return nil
}

// Path returns the compiled file the artifact was loaded from.
func (a *Artifact) Path() string { return a.path }

// ModTime returns the modification time of the file when it was loaded.
func (a *Artifact) ModTime() time.Time { return a.modTime }

// Invoke calls handler(event, {}, callback). The handler completes either
// by calling the callback or by returning a thenable; whichever settles
// first decides the outcome. Handler-side failures are returned as
// *domain.InvocationError.
func (a *Artifact) Invoke(ctx context.Context, req *domain.InvokeRequest) (*domain.InvokeResponse, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, ErrClosed
	}
	a.inflight.Add(1)
	a.mu.Unlock()
	defer a.inflight.Done()

	event, err := toPlain(req)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}

	cell := NewCell[outcome]()
	a.loop.RunOnLoop(func(vm *goja.Runtime) {
		a.call(vm, event, cell)
	})

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(a.aborted, cancel)
	defer stop()

	out, err := cell.Wait(waitCtx)
	if err != nil {
		if ctx.Err() == nil {
			return nil, ErrClosed
		}
		return nil, err
	}
	return out.resp, out.err
}

func (a *Artifact) call(vm *goja.Runtime, event map[string]any, cell *Cell[outcome]) {
	settle := func(o outcome) {
		if !cell.Settle(o) {
			logging.Op().Debug("ignoring repeated settlement", "artifact", a.path)
		}
	}

	callback := func(call goja.FunctionCall) goja.Value {
		if errV := call.Argument(0); !isNullish(errV) {
			settle(outcome{err: &domain.InvocationError{Message: errV.String()}})
			return goja.Undefined()
		}
		resp, err := decodeResponse(call.Argument(1))
		settle(outcome{resp: resp, err: err})
		return goja.Undefined()
	}

	ret, err := a.handler(goja.Undefined(), vm.ToValue(event), vm.NewObject(), vm.ToValue(callback))
	if err != nil {
		settle(outcome{err: &domain.InvocationError{Message: jsError(err).Error()}})
		return
	}

	obj, ok := ret.(*goja.Object)
	if !ok {
		return
	}
	then, ok := goja.AssertFunction(obj.Get("then"))
	if !ok {
		return
	}
	onFulfilled := func(call goja.FunctionCall) goja.Value {
		resp, err := decodeResponse(call.Argument(0))
		settle(outcome{resp: resp, err: err})
		return goja.Undefined()
	}
	onRejected := func(call goja.FunctionCall) goja.Value {
		settle(outcome{err: &domain.InvocationError{Message: call.Argument(0).String()}})
		return goja.Undefined()
	}
	if _, err := then(obj, vm.ToValue(onFulfilled), vm.ToValue(onRejected)); err != nil {
		settle(outcome{err: &domain.InvocationError{Message: jsError(err).Error()}})
	}
}

// Close stops the event loop once in-flight invocations have returned.
// Further Invoke calls fail with ErrClosed.
func (a *Artifact) Close() {
	a.once.Do(func() {
		a.mu.Lock()
		a.closed = true
		a.mu.Unlock()
		a.inflight.Wait()
		a.loop.Stop()
		a.abort()
	})
}

// Abort makes pending Invoke calls return ErrClosed without waiting for
// their handlers to settle, then closes the artifact.
func (a *Artifact) Abort() {
	a.abort()
	a.Close()
}

func decodeResponse(v goja.Value) (*domain.InvokeResponse, error) {
	if isNullish(v) {
		return nil, &domain.InvocationError{Message: "handler response missing statusCode"}
	}
	exported := v.Export()
	if m, ok := exported.(map[string]any); ok {
		// Node coerces a numeric string status ("200") when writing the head.
		if code, ok := m["statusCode"].(string); ok {
			n, err := strconv.Atoi(strings.TrimSpace(code))
			if err != nil {
				return nil, &domain.InvocationError{Message: fmt.Sprintf("invalid statusCode %q", code)}
			}
			m["statusCode"] = n
		}
	}
	data, err := json.Marshal(exported)
	if err != nil {
		return nil, &domain.InvocationError{Message: fmt.Sprintf("invalid handler response: %v", err)}
	}
	var resp domain.InvokeResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &domain.InvocationError{Message: fmt.Sprintf("invalid handler response: %v", err)}
	}
	if resp.StatusCode == nil {
		return nil, &domain.InvocationError{Message: "handler response missing statusCode"}
	}
	return &resp, nil
}

func toPlain(req *domain.InvokeRequest) (map[string]any, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func isNullish(v goja.Value) bool {
	return v == nil || goja.IsUndefined(v) || goja.IsNull(v)
}

// jsError flattens a thrown JS value to its string form ("Error: boom").
func jsError(err error) error {
	var ex *goja.Exception
	if errors.As(err, &ex) && ex.Value() != nil {
		return errors.New(ex.Value().String())
	}
	return err
}
