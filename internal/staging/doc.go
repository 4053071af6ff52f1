// Package staging owns the local working area under the configured tmp
// directory: the per-refid path layout, the exclusive lock each run holds on
// its refid, and the sweep that removes artifacts left behind by killed runs.
package staging
