// Package remote defines the remote storage model used by the sync engine:
// entries, their kinds, the client interface, and folder resolution.
//
// Raw remote file types are normalized into a closed Kind at the boundary,
// so the engine never compares type strings.
package remote
