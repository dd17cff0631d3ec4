// Package options resolves the selectable values of select and command
// fields. Static items are served as declared; remote descriptors query a
// Catalog by endpoint key with a filter whose "{{field}}" placeholders are
// filled from the in-progress form values.
//
// A Session is created per mounted form. It re-resolves dependent fields as
// their references change, keeps only the latest result per field and
// reports failures per field as *ResolutionError.
package options
