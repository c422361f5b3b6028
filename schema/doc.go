// Package schema defines column data types, field specs, schemas and table
// configuration for the real-time segment.
//
// A schema is loaded from JSON and validated once; validation resolves the
// default null value of every column so the ingestion path never recomputes
// it:
//
//	s, err := schema.Parse([]byte(`{
//	  "schemaName": "events",
//	  "fields": [
//	    {"name": "user", "dataType": "STRING"},
//	    {"name": "clicks", "dataType": "LONG", "fieldType": "METRIC"}
//	  ]
//	}`))
//
// Values are coerced to a column's stored type with Convert. BOOLEAN is stored
// as INT (0/1), TIMESTAMP as LONG epoch milliseconds and JSON as STRING.
package schema
