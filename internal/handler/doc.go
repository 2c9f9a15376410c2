// Package handler routes inbound business events to their per-kind handlers.
//
// Every handler runs inside one store transaction and follows the same shape:
// validate the payload, load the records it references, apply the rule,
// persist, append an audit ledger row, and record emissions on the outbox.
// A handler error rolls the whole transaction back, so no partial state is
// ever visible; the outbox is published by the router only after commit.
package handler
