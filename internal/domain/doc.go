// Package domain contains the entities the model service orchestrates:
// detection and classification tasks with their status machine, the
// classification result artifact, and the enums shared with the inference
// backends. It has no dependencies on storage or transport.
package domain
