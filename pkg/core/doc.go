// Package core defines the shared language of the leapgrid system.
//
// This package contains:
//   - Virtual schema entities (Source, Model, Column and typed column options)
//   - Query request types (Filter, Sort, Pagination, Principal)
//   - Static dialect data (DialectConfig, Capabilities)
//   - The error taxonomy shared by every component
//   - The MetaReader contract consumed from the metadata store
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
