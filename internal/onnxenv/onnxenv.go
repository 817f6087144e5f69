// Package onnxenv owns the process-wide ONNX Runtime environment.
// onnxruntime_go requires InitializeEnvironment to be called exactly
// once per process before any session is created, and
// DestroyEnvironment once no session remains in use; this package
// reference-counts that lifecycle so the text encoder, visual encoder,
// and tests can all acquire it independently.
package onnxenv

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	mu       sync.Mutex
	refCount int
)

// Acquire initializes the shared ONNX Runtime environment if this is
// the first caller, and increments the reference count. sharedLibPath
// may be empty to use the platform default search path.
func Acquire(sharedLibPath string) (func(), error) {
	mu.Lock()
	defer mu.Unlock()

	if refCount == 0 {
		if sharedLibPath != "" {
			ort.SetSharedLibraryPath(sharedLibPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("onnxenv: initialize environment: %w", err)
		}
	}
	refCount++

	return func() { release() }, nil
}

func release() {
	mu.Lock()
	defer mu.Unlock()

	refCount--
	if refCount < 0 {
		refCount = 0
		return
	}
	if refCount == 0 {
		_ = ort.DestroyEnvironment()
	}
}
