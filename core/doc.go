// Package core defines the shared data model of auditmesh: the Message and
// Task records exchanged between agents, the Agent contract every worker
// implements, and the error kinds the task queue branches on. All records are
// created through constructors that assign UUID identifiers and UTC
// timestamps; Messages are immutable once published, Tasks are owned and
// mutated exclusively by the queue.
package core
