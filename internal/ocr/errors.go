package ocr

import (
	"fmt"
	"strings"
)

// MissingDependencyError reports that the capability a backend depends on
// (a native library binding, a remote engine factory) is unavailable. It is
// raised once, when the backend is constructed, and never retried.
type MissingDependencyError struct {
	Backend    string
	Dependency string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("%s backend requires %s", e.Backend, e.Dependency)
}

// ValidationError reports a language token that does not resolve to a
// canonical engine code. It carries the original token, the attempted
// normalization and the full accepted-token list for diagnostics.
type ValidationError struct {
	Backend            string
	Language           string
	NormalizedLanguage string
	SupportedLanguages []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("language %q not supported by %s (normalized to %q, supported: %s)",
		e.Language, e.Backend, e.NormalizedLanguage, strings.Join(e.SupportedLanguages, ", "))
}

// EngineInitError reports a failed engine construction for a canonical
// language. The cache entry is not populated on failure, so a later call
// retries construction from scratch.
type EngineInitError struct {
	Backend  string
	Language string
	Err      error
}

func (e *EngineInitError) Error() string {
	return fmt.Sprintf("failed to initialize %s engine for language %q: %v", e.Backend, e.Language, e.Err)
}

func (e *EngineInitError) Unwrap() error { return e.Err }

// ProcessingError reports a failure during engine invocation or result
// transformation, after the engine was acquired successfully.
type ProcessingError struct {
	Backend string
	Err     error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("%s processing failed: %v", e.Backend, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }
