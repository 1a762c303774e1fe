// Package session coordinates access to run records. The Manager
// serializes readers and writers of the same run with reference-counted
// per-run locks, so concurrent API requests and the controller's own
// sample hook never interleave partial updates.
package session
