// Package reader decodes raw records into rows for the ingestion path.
//
// JSONReader reads newline-delimited JSON objects. Objects become Map values,
// arrays become Array values, integral numbers become Long and all other
// numbers Double. Rows are decoded into a caller-supplied Row so a steady
// ingestion loop does not allocate one Row per record.
package reader
