package constants

// SnapshotStatus is the canonical status for rows in snapshots.
type SnapshotStatus string

// Stable values (store these exact strings in DB).
const (
	SnapshotPending    SnapshotStatus = "pending"    // created by upload, waiting for a worker
	SnapshotProcessing SnapshotStatus = "processing" // claimed by a worker
	SnapshotComplete   SnapshotStatus = "complete"   // terminal success, items committed
	SnapshotFailed     SnapshotStatus = "failed"     // terminal failure
)

// Terminal reports whether the status can never change again.
func (s SnapshotStatus) Terminal() bool {
	return s == SnapshotComplete || s == SnapshotFailed
}

// JobStatus is the canonical status for rows in jobs.
type JobStatus string

const (
	JobQueued  JobStatus = "queued"  // visible, eligible for dequeue once run_at passes
	JobRunning JobStatus = "running" // leased by a worker
	JobDead    JobStatus = "dead"    // poison: delivery ceiling exceeded
)
