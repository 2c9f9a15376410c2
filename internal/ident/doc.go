// Package ident mints the public-facing identifiers of the case processor:
// 8-digit case references derived from store sequence numbers, structured
// questionnaire ids with a trailing check-digit pair, and random single-use
// access codes.
//
// All generators are pure functions over caller-supplied input; global
// uniqueness of questionnaire ids and access codes is enforced by store
// constraints, not here.
package ident
