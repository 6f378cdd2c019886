// Package logging provides a tiny abstraction over slog so downstream code
// can depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. It also offers AuditLogger with contextual helpers
// (component, workflow) and domain specific helpers for agent runs, workflow
// executions and task retries.
package logging
