// Package otters provides a micro-batching buffer for columnar
// ingestion: rows arrive one at a time, and batches of Arrow columns
// leave when either a row-count or a time threshold is crossed.
//
// The module is organised around two small core packages and the
// plumbing that feeds and drains them:
//
//   - pkg/schema declares the closed field-type vocabulary and turns it
//     into an Arrow schema descriptor.
//   - pkg/batch implements the dual-trigger Batcher: push rows, receive
//     arrow.Record batches.
//   - pkg/compute provides stateful streaming stages (rolling mean,
//     EMA, z-score, VWAP) that append derived columns to each batch.
//   - pkg/source and pkg/sink move rows in (NDJSON files, Kafka,
//     parquet) and batches out (parquet).
//   - internal/pipeline wires it all together behind the otters CLI.
//
// Minimal embedded use needs only schema and batch:
//
//	s, err := schema.New(
//	    schema.Field{Name: "symbol", Type: schema.TypeString},
//	    schema.Field{Name: "price", Type: schema.TypeFloat64},
//	)
//	if err != nil { ... }
//
//	b, err := batch.New(s, batch.Config{BatchSize: 3, FlushInterval: 10 * time.Second})
//	if err != nil { ... }
//
//	rec, err := b.Push(batch.Row{"symbol": "AAPL", "price": 150.0})
//	if rec != nil {
//	    defer rec.Release()
//	    // one arrow.Record with columns in schema order
//	}
package otters
