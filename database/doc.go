// Package database provides configuration loading, per-operation connection
// and transaction management, driver error classification, query logging
// hooks, the users/activity/preferences models, schema setup, and seed data
// loading, built on top of Bun.
package database
