// Package handlers provides the local JSON API used by webview front ends.
//
// Every operation answers with an apperr.Result envelope: {"ok":true,"value":...}
// on success and {"ok":false,"errorKind":...,"message":...} on failure, with the
// HTTP status derived from the error kind. The API covers:
//   - Folders and the asset library (ingest, batch ingest, edits, moves)
//   - Tags, notes and settings
//   - The trash (restore, permanent delete, empty)
//   - Server-side editor sessions
//   - Health, version and metrics endpoints
package handlers
