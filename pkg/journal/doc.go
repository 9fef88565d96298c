// Package journal persists a history of token usage events.
//
// Every successful formatting request appends an entry with the token
// counts reported by the API. The journal is bounded: only the newest
// entries are retained, so the database stays small no matter how long
// the service runs. History queries back daily usage summaries for the
// CLI and the quota status endpoint.
package journal
