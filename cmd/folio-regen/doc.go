// Command folio-regen maintains the image files of a Folio library while
// the server is stopped.
//
// Usage:
//
//	folio-regen <command> [args]
//
// Commands:
//
//	regen          Rebuild every thumbnail from its original and saved edits.
//	verify         Report images whose original or thumbnail is missing.
//	               Exits with status 1 when problems are found.
//	status         Print catalog counts.
//	purge [age]    Permanently delete trash entries older than age
//	               (a Go duration, default 720h).
//
// Environment:
//
//	FOLIO_DATA_DIR - Library data directory (default: <user config dir>/folio)
package main
