// Package transfer moves finished artifacts to long-term storage.
//
// A RemoteStore abstracts the destination. LocalStore copies into a local or
// mounted directory; SFTPStore uploads over SSH. Both write through a
// temporary name and rename into place, so a remote object either exists in
// full or not at all.
//
// Worker drives one transfer: it is idempotent (a completed transfer is a
// no-op that returns the stored URL), it only deletes the local copy after the
// remote size has been confirmed, and it never deletes the local copy on
// failure.
package transfer
