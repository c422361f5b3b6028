// Package predicate evaluates filters against a segment.
//
// Evaluation picks the cheapest structure the column carries: the inverted
// index for equality on dictionary ids, the range index for ranges, the text
// index for term queries, and a forward index scan otherwise. Results are
// roaring bitmaps of document ids.
//
//	bm, stats, err := predicate.Evaluate(seg, predicate.And(
//	    predicate.Eq("country", row.String("DE")),
//	    predicate.GreaterThan("clicks", row.Long(10)),
//	))
package predicate
