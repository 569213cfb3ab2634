package colframe_test

import (
	"context"
	"fmt"

	"github.com/hupe1980/colframe"
	"github.com/hupe1980/colframe/arraygroup"
	"github.com/hupe1980/colframe/blobstore"
	"github.com/hupe1980/colframe/codec"
	"github.com/hupe1980/colframe/plan"
	"github.com/hupe1980/colframe/table"
)

func Example() {
	ctx := context.Background()
	eng, err := colframe.Open(blobstore.NewMemoryStore())
	if err != nil {
		panic(err)
	}
	defer eng.Close()

	w, err := eng.CreateArrayGroup(ctx, "trips", []arraygroup.ColumnDef{
		{Name: "id", Kind: codec.KindInt},
		{Name: "fare", Kind: codec.KindFloat},
	}, 2)
	if err != nil {
		panic(err)
	}
	for seg := 0; seg < 2; seg++ {
		ids := make([]codec.Value, 3)
		fares := make([]codec.Value, 3)
		for i := range ids {
			row := seg*3 + i
			ids[i] = codec.Int(int64(row))
			fares[i] = codec.Float(float64(row) + 0.5)
		}
		_ = w.Append(seg, 0, ids)
		_ = w.Append(seg, 1, fares)
	}
	if _, err := w.Close(); err != nil {
		panic(err)
	}

	t, err := eng.OpenTable(ctx, "trips")
	if err != nil {
		panic(err)
	}
	defer t.Close()

	g := plan.NewGraph()
	root := g.Project(g.Project(g.Source(t), 1, 0), 0)
	res := eng.Optimize(ctx, g, root)
	fmt.Print(g.Format(res.Root))

	n := g.Node(res.Root)
	fares := n.SourceOf().(*table.Table)
	var sum float64
	for rows, err := range fares.Rows(0, fares.NumRows(), 4) {
		if err != nil {
			panic(err)
		}
		for _, row := range rows {
			sum += row[0].AsFloat()
		}
	}
	fmt.Printf("sum=%.1f\n", sum)

	// Output:
	// #5 source cols=1 rows=6 [fare]
	// sum=18.0
}
