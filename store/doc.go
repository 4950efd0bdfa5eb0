// Package store persists the per-account state of a meshchat session.
//
// A [State] holds the friend list, the three delivery queues and the group
// records of one account. It is loaded once when a session starts and
// rewritten whole after every mutation; there is no partial-write protection
// and no cross-process locking, so one account is expected to have a single
// writer at a time.
//
// Two backends are provided: [FileStore] keeps one JSON document per account
// in a directory, [LevelStore] keeps the same document under one LevelDB key
// per account.
package store
