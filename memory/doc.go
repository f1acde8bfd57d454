// Package memory persists conversations and the session bookkeeping of a
// tools root.
//
// Layout under a tools root:
//
//	context.json            current session id and last activity
//	sessions/<id>.json      full turns of a session, tool blocks included
package memory
