// Package feed defines the upstream price source contracts shared by all
// adapters: a poll contract for request/response sources, a stream contract
// for push sources, the typed error classes the pipeline reacts to, and the
// endpoint failover wrapper for poll sources with multiple candidates.
//
// Adapters normalize symbols before an observation leaves them, so everything
// downstream of this package sees canonical symbols only.
package feed
