// Package schema defines the declarative metadata every entity form and detail
// view is built from: FieldSchema and DetailFieldSchema grouped into Sections.
// Declarations are plain values so they can be authored in Go or decoded from
// JSON/YAML registry documents (see pkg/registry). Go-only hooks such as
// RemoteOptions.FormatLabel, Override.Rule and DetailFieldSchema.Transform are
// skipped by the decoders.
//
// Compose implements "last declaration wins" composition of shared base field
// groups with per-entity overrides, and Check reports authoring defects as
// *SchemaError values.
package schema
