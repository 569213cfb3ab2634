// Package colframe is an embedded analytics storage engine: immutable,
// columnar, block-compressed tables on a blob store, read through a shared
// block manager and queried through lazily optimized plan graphs.
//
// # Storage
//
// An array group is an index file plus segment files (name.0000, name.0001,
// ...). Each segment interleaves compressed blocks of all of the group's
// columns and ends with a block index and an 8-byte footer. Columns are
// addressed as "path:col"; a bare path means column 0.
//
//	eng, _ := colframe.Open(colframe.Local("./data"))
//	defer eng.Close()
//
//	w, _ := eng.CreateArrayGroup(ctx, "trips", []arraygroup.ColumnDef{
//	    {Name: "id", Kind: codec.KindInt},
//	    {Name: "fare", Kind: codec.KindFloat},
//	}, 4)
//	_ = w.Append(0, 0, ids)
//	_ = w.Append(0, 1, fares)
//	_, _ = w.Close()
//
// # Reading
//
// All block reads go through the engine's block manager, which bounds open
// file handles, verifies checksums and caches decoded blocks.
//
//	t, _ := eng.OpenTable(ctx, "trips")
//	defer t.Close()
//	for rows, err := range t.Rows(0, t.NumRows(), 1024) {
//	    ...
//	}
//	_ = eng.Scan(ctx, []*table.Table{t}, 8, func(thread int, row uint64, v [][]codec.Value) error {
//	    ...
//	})
//
// # Plans
//
// Queries are DAGs of plan nodes in a plan.Graph. Optimize rewrites them in
// place with projection pushdown, fusion and union narrowing:
//
//	g := plan.NewGraph()
//	src := g.Source(t)
//	root := g.Project(g.Project(src, 1, 0), 1)
//	res := eng.Optimize(ctx, g, root)
//	fmt.Print(g.Format(res.Root))
package colframe
