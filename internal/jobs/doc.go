// Package jobs provides the asynchronous job queue behind batch ingestion.
//
// A Queue runs a fixed pool of workers draining a buffered channel. Job
// records live in a Store (in-memory for this application); executors are
// registered per job type, and a panicking executor marks its job failed
// without taking the worker down. Ingest is the only job type the web
// server registers, but the queue itself is type-agnostic.
package jobs
