// Package collab defines the contract between the bridge and the
// collaborative-editing service: the editor operation model, merge policy
// hints, and the Service interface the bridge reads and writes through.
//
// The collaboration service owns convergence. The bridge never merges
// concurrent edits itself; it supplies primitive operations together with a
// merge policy hint and trusts the service's CRDT to converge replicas.
package collab
