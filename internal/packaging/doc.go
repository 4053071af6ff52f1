// Package packaging runs one reference id through the packaging pipeline.
//
// A run walks an explicit state sequence:
//
//	staging → classifying → deriving → resolving_metadata → bagging →
//	compressing → delivering → purging → succeeded
//
// Each state's work is attempted once. Any error moves the run to failed,
// recording the state it failed in, and skips every remaining state. The
// failure branch removes the local working directory, the set-aside
// derivative directory and any partial archive, leaving source objects in
// place so a re-run starts from the same inputs. Both branches publish
// exactly one notification and, when enabled, one ledger record.
//
// Pipeline is not safe for concurrent use. Runs for the same reference id in
// separate processes are serialized by a lock file under the tmp directory;
// the second run fails without touching the first run's files.
package packaging
