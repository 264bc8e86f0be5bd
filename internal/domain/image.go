package domain

import (
	"fmt"
)

const (
	MinQuality = 1
	MaxQuality = 100
)

// TransformRequest describes one derivative of a source image. It is built once
// with NewTransformRequest and never mutated afterwards.
type TransformRequest struct {
	sourcePath string
	operations []Operation
	quality    int
	compress   bool
}

// NewTransformRequest copies ops so later changes by the caller do not leak in.
// A zero quality means the configured default.
func NewTransformRequest(sourcePath string, quality int, compress bool, ops ...Operation) TransformRequest {
	cp := make([]Operation, len(ops))
	copy(cp, ops)
	return TransformRequest{
		sourcePath: sourcePath,
		operations: cp,
		quality:    quality,
		compress:   compress,
	}
}

func (r TransformRequest) SourcePath() string { return r.sourcePath }
func (r TransformRequest) Quality() int       { return r.quality }
func (r TransformRequest) Compress() bool     { return r.compress }

func (r TransformRequest) Operations() []Operation {
	cp := make([]Operation, len(r.operations))
	copy(cp, r.operations)
	return cp
}

// WithQuality returns a copy of r using quality q.
func (r TransformRequest) WithQuality(q int) TransformRequest {
	r.operations = r.Operations()
	r.quality = q
	return r
}

func (r TransformRequest) Validate() error {
	if r.sourcePath == "" {
		return paramErr("request", "source", "source path is required")
	}
	if r.quality != 0 && (r.quality < MinQuality || r.quality > MaxQuality) {
		return paramErr("request", "quality", fmt.Sprintf("must be in [%d,%d]", MinQuality, MaxQuality))
	}
	return ValidateOperations(r.operations)
}

type ReferenceKind string

const (
	RefCached     ReferenceKind = "cached"
	RefRemote     ReferenceKind = "remote"
	RefDescriptor ReferenceKind = "descriptor"
)

// Reference is what a resolve call hands back: a cached file, a remote URL or a
// client-side rendering descriptor.
type Reference struct {
	Kind        ReferenceKind `json:"kind"`
	Fingerprint string        `json:"fingerprint,omitempty"`
	Path        string        `json:"-"`
	URL         string        `json:"url"`
}

func (r *Reference) IsCached() bool {
	return r != nil && r.Kind == RefCached
}
