// Package log provides structured logging for the catalog service using
// zerolog.
//
// A single global Logger is configured once via Init and component loggers
// are derived from it with WithComponent so every log line carries which
// subsystem emitted it (catalog, gc, lock, migrate, importexport).
package log
