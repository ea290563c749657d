// Package queue holds submitted jobs in memory and hands them to the worker
// one at a time.
//
// The Store keeps a map of job records plus a FIFO of pending ids behind a
// single mutex. Callers read immutable Snapshots with a computed queue
// position; only the worker advances a job from pending to processing and then
// to a terminal Outcome, and progress never moves backwards once processing
// starts. Terminal jobs stay queryable until the retention sweep evicts them.
//
// Nothing is persisted: a restart loses all job history.
package queue
