// Package fsys is the user file system the host reads and writes through.
//
// The settings store and the file access gateway never touch the os package
// directly; they take a [FileSystem], which in production is [Default]
// (a [LocalFS]) and in tests is usually a [FaultyFS] wrapping it:
//
//	ffs := fsys.NewFaultyFS(nil)
//	ffs.AddRule("settings.json", fsys.Fault{FailWrites: true})
//	store := settings.NewStore(settings.WithFS(ffs))
//
// Operations take no context.Context. A single small read or write is not
// interruptible at the syscall level; callers that must not block hand the
// call to a worker instead (see package offload).
package fsys
