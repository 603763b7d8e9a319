package artifact

import (
	"os"
	"sync"

	"github.com/oriys/lambdadev/internal/domain"
	"github.com/oriys/lambdadev/internal/logging"
	"github.com/oriys/lambdadev/internal/metrics"
)

// Registry caches loaded artifacts by output path.
type Registry struct {
	mu        sync.Mutex
	artifacts map[string]*Artifact
	closed    bool
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{artifacts: make(map[string]*Artifact)}
}

// Get returns the cached artifact for path, loading it when absent or when
// the file on disk no longer matches what was loaded.
func (r *Registry) Get(path string) (*Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &domain.LoadError{Path: path, Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	if a, ok := r.artifacts[path]; ok {
		if a.modTime.Equal(info.ModTime()) && a.size == info.Size() {
			return a, nil
		}
		logging.Op().Debug("artifact changed on disk, reloading", "path", path)
		r.evictLocked(path, a)
	}

	name := domain.NameFromSource(path)
	a, err := Load(path)
	metrics.RecordPrometheusLoad(name, err == nil)
	if err != nil {
		logging.Op().Error("load artifact failed", "path", path, "error", err)
		return nil, err
	}
	r.artifacts[path] = a
	metrics.SetCachedArtifacts(len(r.artifacts))
	logging.Op().Debug("artifact loaded", "path", path)
	return a, nil
}

// Invalidate drops the cached artifact for path so the next Get reloads it.
// The old artifact is closed once its in-flight invocations finish.
func (r *Registry) Invalidate(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.artifacts[path]
	if ok {
		r.evictLocked(path, a)
	}
	return ok
}

func (r *Registry) evictLocked(path string, a *Artifact) {
	delete(r.artifacts, path)
	metrics.SetCachedArtifacts(len(r.artifacts))
	go a.Close()
}

// Len returns the number of cached artifacts.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.artifacts)
}

// Close aborts every cached artifact and empties the registry. Invocations
// still waiting on a handler return ErrClosed, and later Get calls fail
// with ErrClosed.
func (r *Registry) Close() {
	r.mu.Lock()
	artifacts := r.artifacts
	r.artifacts = make(map[string]*Artifact)
	r.closed = true
	r.mu.Unlock()

	metrics.SetCachedArtifacts(0)
	for _, a := range artifacts {
		a.Abort()
	}
}
