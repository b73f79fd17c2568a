// Package queue provides the bounded FIFO that feeds the speech worker.
// Producers never block: a full queue is reported to the caller, which
// decides how to degrade. A single consumer drains items in submission
// order, which is what keeps spoken responses from overlapping.
package queue
