// Package errs defines the error shapes the API returns to clients.
//
// HTTPError is serialised as is by the global error handler, so every
// transport-level failure (validation, auth, conflicts, internal errors)
// reaches the client with the same JSON structure.
package errs
