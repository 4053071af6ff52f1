// Package metadata resolves the descriptive metadata written into each bag:
// the catalog URI of the asset's archival object, a normalized date range,
// the origin tag and the rights identifiers.
package metadata
