// Package query implements tiered price lookups.
//
// Lookups consult the memory buffer first and fall back to the durable
// store; which tier answered is part of the result. Matches are annotated
// with formatted timestamps in UTC and the configured display zone.
package query
