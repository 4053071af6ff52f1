// Package aspace is a minimal ArchivesSpace REST client covering the lookups
// the packaging pipeline needs: resolving a reference id to an archival object
// URI and finding the closest date record in the object's hierarchy.
//
// Sessions are established lazily on the first request and reused for the
// life of the client.
package aspace
