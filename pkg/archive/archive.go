// Package archive packs fetched images into a single in-memory zip.
//
// Image entries are named from a zero-padded ordinal followed by a literal
// "0" and the sniffed extension ("0000.jpg", "0010.png", ...). One extra
// plain-text entry records the page the images came from.
package archive

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"fmt"
	"io"
	"time"

	"comicgrabber/internal/downloader"
	"comicgrabber/pkg/config"
	errs "comicgrabber/pkg/errors"
	"comicgrabber/pkg/sniff"
)

// Numbering selects how image ordinals are derived
type Numbering string

const (
	// Positional uses the original page position; failed images leave gaps
	Positional Numbering = "positional"
	// Compact numbers successful images consecutively
	Compact Numbering = "compact"
)

// DefaultProvenanceName is the name of the source-page entry
const DefaultProvenanceName = "Downloaded from.txt"

// EntryInfo describes one entry of a built archive
type EntryInfo struct {
	Name string
	Size int
}

// Archive is a complete zip file held in memory
type Archive struct {
	Data    []byte
	Entries []EntryInfo
}

// Builder assembles archives
type Builder struct {
	Numbering        Numbering
	ProvenanceName   string
	CompressionLevel int
	// Modified stamps every entry; a fixed value makes output byte-identical
	Modified time.Time

	newWriter func(io.Writer) *zip.Writer
}

// NewBuilder creates a builder from archive configuration
func NewBuilder(cfg config.ArchiveConfig) *Builder {
	b := &Builder{
		Numbering:        Numbering(cfg.Numbering),
		ProvenanceName:   cfg.ProvenanceName,
		CompressionLevel: cfg.CompressionLevel,
	}
	if b.Numbering == "" {
		b.Numbering = Positional
	}
	if b.ProvenanceName == "" {
		b.ProvenanceName = DefaultProvenanceName
	}
	return b
}

// EntryName formats the archive name for the image at ordinal
func EntryName(ordinal int, ext string) string {
	return fmt.Sprintf("%03d0.%s", ordinal, ext)
}

// Build packs every successful outcome plus the provenance entry. outcomes
// must be in page order. It returns either a complete archive or an
// archive-assembly error, never a partial one.
func (b *Builder) Build(outcomes []downloader.Outcome, sourceURI string) (*Archive, error) {
	var buf bytes.Buffer
	zw := b.writer(&buf)
	level := b.CompressionLevel
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})

	modified := b.Modified
	if modified.IsZero() {
		modified = time.Now()
	}

	entries := make([]EntryInfo, 0, len(outcomes)+1)
	seen := make(map[string]bool, len(outcomes)+1)

	add := func(name string, payload []byte) error {
		if seen[name] {
			return fmt.Errorf("duplicate entry %q", name)
		}
		seen[name] = true

		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			return fmt.Errorf("create entry %q: %w", name, err)
		}
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("write entry %q: %w", name, err)
		}
		entries = append(entries, EntryInfo{Name: name, Size: len(payload)})
		return nil
	}

	ordinal := 0
	for i, o := range outcomes {
		if !o.Success() {
			continue
		}
		n := i
		if b.Numbering == Compact {
			n = ordinal
		}
		ordinal++

		if err := add(EntryName(n, sniff.Extension(o.DeclaredType, o.Data)), o.Data); err != nil {
			return nil, errs.NewArchiveAssemblyFailure(err)
		}
	}

	name := b.ProvenanceName
	if name == "" {
		name = DefaultProvenanceName
	}
	if err := add(name, []byte(sourceURI)); err != nil {
		return nil, errs.NewArchiveAssemblyFailure(err)
	}

	if err := zw.Close(); err != nil {
		return nil, errs.NewArchiveAssemblyFailure(fmt.Errorf("finalize archive: %w", err))
	}

	return &Archive{Data: buf.Bytes(), Entries: entries}, nil
}

func (b *Builder) writer(w io.Writer) *zip.Writer {
	if b.newWriter != nil {
		return b.newWriter(w)
	}
	return zip.NewWriter(w)
}
