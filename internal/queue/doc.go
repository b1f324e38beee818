// Package queue implements the durable offline submission queues.
//
// Each Queue owns one serialized JSON array of entries stored under a fixed
// key in a kvstore.Backend. Entries move pending → syncing → synced, back to
// pending for a retry, or to failed once the retry ceiling is reached. Drain
// cycles submit pending entries one at a time in enqueue order and persist
// after every transition so a crash loses at most the in-flight entry's
// outcome.
//
// All reads and writes of the stored blob for one queue go through the
// queue's mutex; the network submission itself runs outside the lock so
// enqueue stays responsive during a drain. Overlapping drains are coalesced.
package queue
