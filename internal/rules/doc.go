// Package rules provides the relationship endpoint rule table.
//
// The table maps each relationship type to the element types it may
// connect. It is authored in CUE (endpoints.cue, embedded) and unified with
// a schema (schema.cue) that pins element type names, then checked again on
// the Go side for structural problems such as empty endpoint sets or pairs
// that fall outside the declared sets.
//
// # Pairs
//
// A rule with explicit pairs accepts only those pairs. Its from/to sets stay
// informative (and bound the pairs) but are not multiplied out.
//
// # Custom tables
//
// Load and Compile accept caller-provided CUE with the same shape, so
// governance can be exercised against a table that has evolved since edges
// were inserted.
package rules
