// Package contenthash computes deterministic digests of native records
// (calendar events, reminders, contacts) for change detection.
//
// Only semantically meaningful fields are hashed; volatile bookkeeping
// such as modification timestamps and store-internal identifiers is
// excluded. Fields that are unordered collections (attendees, alarms,
// phone numbers, recurrence weekdays) are serialized per element and
// sorted by canonical byte representation before inclusion, so the digest
// is invariant to the native store's internal ordering. The canonicalized
// fields are packed into one MessagePack array and hashed with SHA-256.
package contenthash
