// Package messaging carries business events over Redis streams.
//
// Every message, inbound or outbound, is an Envelope whose payload is a
// tagged union keyed by the declared event type; Decode rejects envelopes
// whose payload variant does not match the declaration. Consumption uses
// consumer groups with a fixed worker pool per stream and an auto-claim loop
// that redelivers messages left pending by a Retry outcome.
package messaging
