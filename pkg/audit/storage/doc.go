// Package storage provides the audit record backends: an in-memory store
// for tests and previews, and a SQLite store for durable deployments.
package storage
