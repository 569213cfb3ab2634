// Package fs provides filesystem abstractions for testability and fault injection.
//
//   - [LocalFS]: production implementation on the os package
//   - [FaultyFS]: test wrapper that injects open, read and write faults and
//     counts open files
//
// Production code uses fs.Default:
//
//	f, err := fs.Open(fs.Default, path)
//
// Tests inject faults per file-name pattern:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("orders.0001", fs.Fault{CorruptReadAt: true})
//
// Operations take no context.Context; local syscalls are not interruptible.
// Remote storage goes through blobstore, which does take one.
package fs
