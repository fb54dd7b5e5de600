// Package events defines the task-created notification contract between
// the lifecycle operator and whatever transport carries the notification
// (Kafka in production, the in-memory emitter in tests and single-binary
// deployments).
package events
