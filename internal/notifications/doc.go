// Package notifications formats folio results for display and delivers them
// via ntfy.
//
// The formatter turns metadata lookups, acquisitions and failures into a
// Message whose Text rendering is also what the dispatcher replies with. The
// ntfy publisher posts messages to the configured topic and degrades to a
// no-op when no topic is configured or the event kind is switched off.
package notifications
