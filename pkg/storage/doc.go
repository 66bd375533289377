// Package storage is the local download host: it saves finished archives
// under an output directory and reports each download's lifecycle.
//
// Download validates the filename synchronously and returns an id; the write
// happens on its own goroutine and is reported as in_progress followed by
// complete or interrupted.
//
// Conflict policies:
//   - overwrite replaces an existing file
//   - uniquify picks "name (1).zip", "name (2).zip", ...
//   - fail interrupts the download when the file exists
//
// Files are written to a temporary file in the target directory and renamed
// into place, so a reader never sees a partial archive.
//
//	manager, err := storage.NewManager("downloads", log)
//	deltas, stop := manager.Subscribe()
//	defer stop()
//	id, err := manager.Download(ctx, host.Request{Source: data, Filename: "Title/1.zip"})
package storage
