// Package broadcast wraps a storage.Backend with the envelope and origin-tag
// discipline shared by every context of a sync universe.
//
// Each Store owns an OriginTag. Every value it writes is wrapped in an
// Envelope carrying that tag, and every change notification it receives is
// decoded and compared against the tag before any listener sees it, so a
// context never reacts to its own writes even when the backend would echo
// them.
//
// Two data shapes are supported:
//
//	single blob    key              -> {"id": tag, "state": value}
//	per namespace  vuex-storekeys   -> ["a", "b"]
//	               vuex-store-a     -> {"id": tag, "storeState": value}
//
// Reads never fail loudly. Missing or malformed data is logged and reported
// as absent.
package broadcast
