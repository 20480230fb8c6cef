// Package pagination provides the offset/limit page cursor used for browse
// mode and a parallel prefetcher for bulk page retrieval.
//
// A Cursor only ever moves by whole page sizes:
//
//	cur, _ := pagination.NewCursor(20)
//	cur = cur.Next() // Offset 20
//	cur = cur.Reset() // Offset 0
//
// The prefetcher fetches the first page to learn the catalog total, then
// distributes the remaining pages across a worker pool and reassembles the
// items in offset order:
//
//	pf := pagination.NewPrefetcher(catalogClient, pagination.DefaultConfig())
//	items, err := pf.FetchPages(ctx, cur, 10)
//
// A failed page stops the fetch; pages before the gap are still returned
// together with the error.
package pagination
