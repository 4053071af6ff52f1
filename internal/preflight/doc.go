// Package preflight provides readiness checks for the local filesystem,
// external binaries and the catalog the packaging pipeline depends on.
//
// These checks run in two contexts:
//   - The run command calls RunLocal before staging. If any check fails the
//     run is aborted as failed so no source objects are downloaded into a
//     directory that cannot hold them.
//   - The CLI "avpackaging status" command calls RunAll, which adds the
//     catalog reachability check, and renders the results as a table.
package preflight
