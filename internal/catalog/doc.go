// Package catalog defines the domain model shared by the resolver, series
// crawler, book fetcher, scheduler and report assembler: series and book
// records, fetch outcomes, the error taxonomy, URL helpers and the narrow
// interfaces (PageSource, Clock, IdentityPolicy) the pipeline depends on.
package catalog
