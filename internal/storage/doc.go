// Package storage moves files between the local working directory and blob
// storage. Two backends implement Store: Amazon S3 through aws-sdk-go-v2's
// transfer manager, and any S3-compatible server through minio-go.
package storage
