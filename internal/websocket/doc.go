// Package websocket pushes batch ingest progress to browser clients.
//
// The Hub owns the client set and a single broadcast loop; ingest code
// publishes typed events (batch queued, per-file outcomes, progress,
// completion) that fan out to every connected client as JSON envelopes
// from pkg/contracts/events. A client that cannot keep up with the
// broadcast stream is disconnected rather than allowed to block it.
package websocket
