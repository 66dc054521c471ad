// Package state persists snapshot payloads and the undo/redo history built
// from them.
//
// Store[T] loads and saves one value per Ref. Writes carry an ETag derived
// from the JSON encoding of the value; a Save whose Meta.ETag does not match
// the stored ETag fails with ErrETagMismatch, which gives editors optimistic
// concurrency without locks. MemoryStore keeps values in process and
// SQLiteStore keeps them in a single documents table.
//
// Data flow:
//
//	snapshot.Store.Close -> *snapshot.Payload -> History.Record -> SaveHistory
//	LoadHistory -> History.Undo/Redo -> snapshot.Service.Deserialize
//
// Deterministic keys:
//
//	Ref.Identifier() yields `shared/<document>` or `owner/<owner>/<document>`.
package state
