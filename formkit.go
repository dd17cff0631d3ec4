// Package formkit is the quick-start entry point: it loads a registry
// directory and binds it to a catalog and an entity store.
package formkit

import (
	"io/fs"
	"net/http"
	"os"

	"github.com/goliatone/go-formkit/pkg/engine"
	"github.com/goliatone/go-formkit/pkg/httpapi"
	"github.com/goliatone/go-formkit/pkg/registry"
	"github.com/goliatone/go-formkit/pkg/schema"
)

// FieldSchema aliases schema.FieldSchema for callers assembling forms in
// code.
type FieldSchema = schema.FieldSchema

// DetailFieldSchema aliases schema.DetailFieldSchema.
type DetailFieldSchema = schema.DetailFieldSchema

// Form is a mounted form.
type Form = engine.Form

// Engine aliases engine.Engine.
type Engine = engine.Engine

// Open loads every declaration under dir and returns an engine over it.
func Open(dir string, opts ...engine.Option) (*Engine, error) {
	return OpenFS(os.DirFS(dir), opts...)
}

// OpenFS is Open over an arbitrary file system, such as an embed.FS.
func OpenFS(fsys fs.FS, opts ...engine.Option) (*Engine, error) {
	reg, err := registry.LoadFS(fsys)
	if err != nil {
		return nil, err
	}
	return engine.New(reg, opts...), nil
}

// Handler exposes eng over HTTP.
func Handler(eng *Engine, opts ...httpapi.Option) http.Handler {
	return httpapi.New(eng, opts...)
}
