// Package resource bounds the memory, background concurrency and IO
// throughput shared by segments and exports.
//
// Segments reserve every chunk they allocate through Reserve, which never
// blocks; a refused reservation surfaces as an allocation failure on the
// ingestion path. Exports acquire background slots and throttle their blob
// IO through the rate-limited reader and writer.
package resource
