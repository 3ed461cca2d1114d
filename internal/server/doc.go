// Package server exposes audiobatch over HTTP.
//
// Routes:
//
//	POST /api/batches               run a batch, respond with a JSON report
//	GET  /api/batches/:id/archive   download the archive once
//	GET  /api/batches               recent batches from history
//	GET  /healthz                   liveness
//
// A POST body is either JSON ({"references": [...]} or {"text": "..."}) or
// text/plain with one reference per line. The request blocks until the batch
// finishes. Archives not collected within the TTL are deleted.
package server
