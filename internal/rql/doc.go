// Package rql implements the Recall query language.
//
// A query is a filter followed by optional commands:
//
//	level:error,fatal env:!staging data.user.id:42 "payment failed" since:2h | last 20
//	service:api OR service:worker | stats by:hour
//
// The filter is one AND group of field:value tokens and quoted free-text
// terms, or several such groups joined by OR. Groups cannot be nested and a
// query is either a single AND group or a flat OR of groups.
//
// Parsing never fails. Unknown fields and stray words are ignored, bad
// time windows fall back to the last hour, bad command arguments fall back
// to defaults, and a level list with no known level matches nothing.
//
// Parsed queries run against any View implementation; the DuckDB store
// compiles predicates to SQL and the memstore package evaluates them in
// memory with the same three-valued semantics.
package rql
