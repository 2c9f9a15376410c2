// Package domain holds the persistent entities of the case processor: the
// collection Case, the UacQidLink pairing an access code with a questionnaire
// id, and the append-only ledger of processed business events.
//
// Entities reference each other by id only. Relations are loaded with explicit
// store queries; there is no live object graph.
package domain
