// Package procurement defines the data model shared by the SIRUP scrape
// pipeline: organizational units, package listings, matched records, run
// bookkeeping, and the narrow interfaces the pipeline stages depend on.
package procurement
