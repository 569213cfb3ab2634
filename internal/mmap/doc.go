// Package mmap provides read-only memory mappings of local segment files.
//
//	m, err := mmap.Open("orders.0000")
//	if err != nil { ... }
//	defer m.Close()
//
//	raw, _ := m.Slice(info.Offset, int(info.OnDiskSize))
//
// Unix platforms use mmap(2) via golang.org/x/sys/unix; other platforms fall
// back to reading the whole file.
package mmap
