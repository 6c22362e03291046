// Package engine orchestrates a sync cycle: ensure the account and its
// journals exist, pull and verify new chain entries, apply them to the
// native store, diff native state against the item-hash baseline, push
// local changes as new chain entries, and advance local state only on
// success.
//
// One session per account runs at a time; a second Sync while one is
// active is rejected. Within a session the three collection types sync in
// parallel, with any one collection's failure isolated from the others.
// Entries within a single journal are always handled strictly in chain
// order.
package engine
