package detector

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func touch(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func scan(t *testing.T, dir string, snap Snapshot, opts Options) bool {
	t.Helper()
	changed, err := Scan(dir, snap, opts)
	require.NoError(t, err)
	return changed
}

var base = time.Unix(1_700_000_000, 0)

func TestScan_BaselineThenStable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "a", base)
	writeFile(t, filepath.Join(dir, "b.txt"), "b", base)

	snap := NewSnapshot()
	assert.False(t, scan(t, dir, snap, Options{}), "first sight only seeds the snapshot")
	assert.Len(t, snap, 2)
	assert.False(t, scan(t, dir, snap, Options{}))
	assert.False(t, scan(t, dir, snap, Options{}))
}

func TestScan_ChangeReportedExactlyOnce(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "app.cfg")
	writeFile(t, p, "v1", base)

	snap := NewSnapshot()
	require.False(t, scan(t, dir, snap, Options{}))

	writeFile(t, p, "v2", base.Add(5*time.Second))
	assert.True(t, scan(t, dir, snap, Options{}))
	assert.False(t, scan(t, dir, snap, Options{}))
	assert.Equal(t, base.Add(5*time.Second).Unix(), snap["app.cfg"])
}

func TestScan_NewFileSeedsWithoutChange(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "a", base)
	snap := NewSnapshot()
	require.False(t, scan(t, dir, snap, Options{}))

	writeFile(t, filepath.Join(dir, "new.txt"), "n", base)
	assert.False(t, scan(t, dir, snap, Options{}))
	assert.Contains(t, snap, "new.txt")
}

func TestScan_DeletionIsNotAChange(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "gone.txt")
	writeFile(t, p, "x", base)
	snap := NewSnapshot()
	require.False(t, scan(t, dir, snap, Options{}))
	require.NoError(t, os.Remove(p))
	assert.False(t, scan(t, dir, snap, Options{}))
}

func TestScan_BurstSettlesOverSeveralScans(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	writeFile(t, a, "a", base)
	writeFile(t, b, "b", base)
	snap := NewSnapshot()
	require.False(t, scan(t, dir, snap, Options{}))

	later := base.Add(time.Minute)
	touch(t, a, later)
	touch(t, b, later)

	// ReadDir is sorted: the first scan stops at a.txt, b.txt is caught next.
	assert.True(t, scan(t, dir, snap, Options{}))
	assert.Equal(t, base.Unix(), snap["b.txt"])
	assert.True(t, scan(t, dir, snap, Options{}))
	assert.False(t, scan(t, dir, snap, Options{}))
}

func TestScan_SingleLevelIgnoresNestedEdits(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	nested := filepath.Join(sub, "deep.txt")
	writeFile(t, nested, "v1", base)
	touch(t, sub, base)

	snap := NewSnapshot()
	require.False(t, scan(t, dir, snap, Options{}))
	assert.Contains(t, snap, "sub")
	assert.NotContains(t, snap, "sub/deep.txt")

	touch(t, nested, base.Add(time.Hour))
	assert.False(t, scan(t, dir, snap, Options{}), "nested edits are outside a single-level scan")
}

func TestScan_RecursiveSeesNestedEdits(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	nested := filepath.Join(sub, "deep.txt")
	writeFile(t, nested, "v1", base)
	touch(t, sub, base)

	snap := NewSnapshot()
	opts := Options{Recursive: true}
	require.False(t, scan(t, dir, snap, opts))
	assert.Contains(t, snap, "sub/deep.txt")

	touch(t, nested, base.Add(time.Hour))
	assert.True(t, scan(t, dir, snap, opts))
	assert.False(t, scan(t, dir, snap, opts))
}

func TestScan_MissingDirectory(t *testing.T) {
	_, err := Scan(filepath.Join(t.TempDir(), "nope"), NewSnapshot(), Options{})
	assert.Error(t, err)
	_, err = Scan(filepath.Join(t.TempDir(), "nope"), NewSnapshot(), Options{Recursive: true})
	assert.Error(t, err)
}

type fakeInfo struct {
	fs.FileInfo
	size  int64
	mtime time.Time
}

func (f fakeInfo) Size() int64        { return f.size }
func (f fakeInfo) ModTime() time.Time { return f.mtime }

func TestSignature_FallsBackToSize(t *testing.T) {
	assert.Equal(t, base.Unix(), signature(fakeInfo{size: 10, mtime: base}))
	assert.Equal(t, int64(10), signature(fakeInfo{size: 10}))
	// Sub-second edits share a signature.
	assert.Equal(t, signature(fakeInfo{mtime: base}), signature(fakeInfo{mtime: base.Add(300 * time.Millisecond)}))
}
