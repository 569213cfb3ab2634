package blockmanager

import "fmt"

// SegmentID identifies one resolved segment path for the lifetime of its
// entry in a Manager.
type SegmentID uint64

// ColumnAddress addresses a column within a segment.
type ColumnAddress struct {
	Segment SegmentID
	Column  int
}

// Block returns the address of block i of the column.
func (a ColumnAddress) Block(i int) BlockAddress {
	return BlockAddress{Segment: a.Segment, Column: a.Column, Block: i}
}

func (a ColumnAddress) String() string {
	return fmt.Sprintf("%d:%d", a.Segment, a.Column)
}

// BlockAddress addresses one block.
type BlockAddress struct {
	Segment SegmentID
	Column  int
	Block   int
}

// ColumnAddress returns the column part of the address.
func (a BlockAddress) ColumnAddress() ColumnAddress {
	return ColumnAddress{Segment: a.Segment, Column: a.Column}
}

func (a BlockAddress) String() string {
	return fmt.Sprintf("%d:%d/%d", a.Segment, a.Column, a.Block)
}
