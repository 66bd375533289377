// Package checkpoint records how far a series has been downloaded so that
// following episodes with grab --follow can stop and later resume.
//
// A checkpoint is kept per series title. It tracks:
//   - The page of the next episode to fetch
//   - Episodes already archived (page URL to archive filename)
//
// Checkpoints are stored in platform-specific data directories:
//   - Linux: ~/.local/share/comicgrabber/checkpoints/
//   - macOS: ~/Library/Application Support/comicgrabber/checkpoints/
//   - Windows: %APPDATA%/comicgrabber/checkpoints/
//
// The files are saved atomically and carry a version number.
package checkpoint
