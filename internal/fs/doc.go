// Package fs abstracts the file system operations of the local blob store
// so tests can inject failures.
//
// Production code uses [Default]. Tests wrap it in a [FaultyFS]:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.Inject(fs.Fault{Op: fs.OpSync, Match: "rows.jsonl"})
//	store := blobstore.NewLocalStore(dir, blobstore.WithFileSystem(ffs))
//
// Operations take no context. Local file system calls are not
// interruptible; slow remote IO goes through blobstore.Blob instead.
package fs
