// Package remote is a docstore backed by a songbook server over HTTP.
//
// # Overview
//
// The client speaks the JSON API served by `songbook serve`, so several
// terminals can share one database through a single server process.
//
// # API Endpoints
//
//   - GET /api/health: server liveness and the active backend
//   - GET /api/collections/{c}/documents: snapshot with its version
//   - POST /api/collections/{c}/documents: create, returns the new key
//   - PUT /api/collections/{c}/documents/{key}: merge fields
//   - DELETE /api/collections/{c}/documents/{key}: remove
//
// # Watching
//
// Watch long-polls the snapshot endpoint with after=<version>&wait_ms=<n>.
// The server holds the request until the collection changes or the wait
// elapses. A snapshot is forwarded only when its version differs from the
// last one seen.
//
// Transport failures back off exponentially from the poll interval, capped
// at 30 seconds. After three consecutive failures the watch reports the last
// error and closes; callers restart it explicitly.
//
// # Errors
//
// Non-2xx responses become *StatusError, for example
// "api /api/collections/song/documents returned status 500". A 404 on update
// is reported as docstore.ErrNotFound.
package remote
