// Package store holds the telemetry records the service aggregates over.
// Records are loaded once from a JSON file at startup and never change
// afterwards, so a Store is safe for any number of concurrent readers.
package store
