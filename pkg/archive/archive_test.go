package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"comicgrabber/internal/downloader"
	"comicgrabber/pkg/config"
	errs "comicgrabber/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	png  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 1, 2, 3}
	jpeg = []byte{0xff, 0xd8, 0xff, 0xe0, 0, 0x10, 'J', 'F', 'I', 'F'}
)

func ok(i int, declared string, data []byte) downloader.Outcome {
	return downloader.Outcome{Index: i, SourceURL: "u", DeclaredType: declared, Data: data}
}

func failed(i int) downloader.Outcome {
	return downloader.Outcome{Index: i, SourceURL: "u", Err: errors.New("403")}
}

func readZip(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	out := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		out[f.Name] = b
	}
	return out
}

func TestEntryName(t *testing.T) {
	assert.Equal(t, "0000.jpg", EntryName(0, "jpg"))
	assert.Equal(t, "0020.png", EntryName(2, "png"))
	assert.Equal(t, "1230.webp", EntryName(123, "webp"))
	assert.Equal(t, "12340.gif", EntryName(1234, "gif"))
}

func TestAllSuccessesGiveNPlusOneEntries(t *testing.T) {
	b := NewBuilder(config.DefaultConfig().Archive)
	outcomes := []downloader.Outcome{
		ok(0, "image/jpeg", jpeg),
		ok(1, "application/octet-stream", png),
		ok(2, "", jpeg),
	}

	a, err := b.Build(outcomes, "https://site.example/ep/1")
	require.NoError(t, err)

	require.Len(t, a.Entries, 4)
	assert.Equal(t, "0000.jpg", a.Entries[0].Name)
	assert.Equal(t, "0010.png", a.Entries[1].Name)
	assert.Equal(t, "0020.jpg", a.Entries[2].Name)
	assert.Equal(t, "Downloaded from.txt", a.Entries[3].Name)

	files := readZip(t, a.Data)
	assert.Len(t, files, 4)
	assert.Equal(t, png, files["0010.png"], "bytes are stored unmodified")
	assert.Equal(t, "https://site.example/ep/1", string(files["Downloaded from.txt"]))
}

func TestPositionalNumberingLeavesGap(t *testing.T) {
	b := NewBuilder(config.ArchiveConfig{Numbering: "positional"})
	a, err := b.Build([]downloader.Outcome{
		ok(0, "image/jpeg", jpeg),
		failed(1),
		ok(2, "image/png", png),
	}, "src")
	require.NoError(t, err)

	names := []string{a.Entries[0].Name, a.Entries[1].Name, a.Entries[2].Name}
	assert.Equal(t, []string{"0000.jpg", "0020.png", DefaultProvenanceName}, names)
}

func TestCompactNumberingSkipsFailures(t *testing.T) {
	b := NewBuilder(config.ArchiveConfig{Numbering: "compact"})
	a, err := b.Build([]downloader.Outcome{
		failed(0),
		ok(1, "image/jpeg", jpeg),
		ok(2, "image/png", png),
	}, "src")
	require.NoError(t, err)

	require.Len(t, a.Entries, 3)
	assert.Equal(t, "0000.jpg", a.Entries[0].Name)
	assert.Equal(t, "0010.png", a.Entries[1].Name)
}

func TestNoSuccessesStillHasProvenance(t *testing.T) {
	b := NewBuilder(config.ArchiveConfig{})
	a, err := b.Build([]downloader.Outcome{failed(0), failed(1)}, "src")
	require.NoError(t, err)

	require.Len(t, a.Entries, 1)
	assert.Equal(t, DefaultProvenanceName, a.Entries[0].Name)
}

func TestBuildIsDeterministicWithFixedTime(t *testing.T) {
	b := NewBuilder(config.DefaultConfig().Archive)
	b.Modified = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	outcomes := []downloader.Outcome{ok(0, "image/jpeg", jpeg), ok(1, "image/png", png)}

	first, err := b.Build(outcomes, "src")
	require.NoError(t, err)
	second, err := b.Build(outcomes, "src")
	require.NoError(t, err)

	assert.Equal(t, first.Data, second.Data)
}

func TestNameCollisionIsAssemblyFailure(t *testing.T) {
	b := NewBuilder(config.ArchiveConfig{ProvenanceName: "0000.jpg"})
	a, err := b.Build([]downloader.Outcome{ok(0, "image/jpeg", jpeg)}, "src")

	assert.Nil(t, a)
	assert.True(t, errs.IsType(err, errs.ErrorTypeArchiveAssembly))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriterErrorIsAssemblyFailure(t *testing.T) {
	b := NewBuilder(config.DefaultConfig().Archive)
	b.newWriter = func(io.Writer) *zip.Writer { return zip.NewWriter(failingWriter{}) }

	a, err := b.Build([]downloader.Outcome{ok(0, "image/jpeg", jpeg)}, "src")

	assert.Nil(t, a)
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeArchiveAssembly))
}
