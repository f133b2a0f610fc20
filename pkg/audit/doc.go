// Package audit records every authorization-relevant decision,
// allowed or denied, to an append-only trail. The default MemorySink
// keeps the most recent entries in a bounded ring and silently evicts
// older ones under load; it is a best-effort security trail, not a
// durable ledger. DBSink adds PostgreSQL persistence and MultiSink
// fans out to both.
package audit
