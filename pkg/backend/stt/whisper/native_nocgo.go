//go:build !cgo

// Stub counterpart of native.go for builds without cgo, where the
// whisper.cpp bindings cannot be compiled. The native backend keeps its
// API surface so callers build unchanged; constructing it reports that
// the binary was built without cgo support.

package whisper

import (
	"errors"

	"github.com/lexia-ai/lexia/pkg/backend/stt"
)

// NativeBackend implements stt.Backend using whisper.cpp Go bindings (CGO).
// It is unavailable in builds without cgo.
type NativeBackend struct{}

// NativeOption is a functional option for configuring a NativeBackend.
type NativeOption func(*NativeBackend)

// WithNativeLanguage sets the default language code used when a request does
// not specify one. Empty means auto-detect.
func WithNativeLanguage(lang string) NativeOption {
	return func(*NativeBackend) {}
}

// NewNative reports that the native whisper backend is unavailable because
// the binary was built without cgo.
func NewNative(modelPath string, opts ...NativeOption) (stt.Backend, error) {
	return nil, errors.New("whisper: native backend requires a build with cgo enabled")
}
