// Package fs abstracts the file system writes of the local blob store so
// tests can inject failures.
//
// Production code uses [Default]. Tests wrap it in a [FaultyFS]:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule(".tmp", fs.Fault{FailAfterBytes: 1024})
//	store := blobstore.NewLocalStore(dir, blobstore.WithFileSystem(ffs))
//
// Reads go through memory mappings and are not abstracted.
package fs
