package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_SplitsDirAndName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.exe"), nil, 0o755))

	got, err := resolve(filepath.Join(dir, "sub", "..", "app.exe"), true)
	require.NoError(t, err)
	realDir, _ := filepath.EvalSymlinks(dir)
	assert.Equal(t, Target{Dir: realDir, Name: "app.exe"}, got)
	assert.True(t, filepath.IsAbs(got.Dir))
}

func TestResolve_RelativePath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run.sh"), nil, 0o755))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	got, err := resolve("./run.sh", false)
	require.NoError(t, err)
	assert.Equal(t, "run.sh", got.Name)
	assert.True(t, filepath.IsAbs(got.Dir))
}

func TestResolve_Failures(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "noext"), nil, 0o755))

	_, err := resolve("", false)
	assert.ErrorIs(t, err, ErrPathRequired)

	_, err = resolve(filepath.Join(dir, "missing.exe"), false)
	assert.ErrorIs(t, err, ErrNotExist)

	_, err = resolve(dir, false)
	assert.ErrorIs(t, err, ErrNoExecutableName)

	_, err = resolve(filepath.Join(dir, "noext"), true)
	assert.ErrorIs(t, err, ErrNoExecutableName)

	got, err := resolve(filepath.Join(dir, "noext"), false)
	require.NoError(t, err)
	assert.Equal(t, "noext", got.Name)
}

func TestResolve_FollowsSymlink(t *testing.T) {
	dir := t.TempDir()
	realDir := filepath.Join(dir, "real")
	require.NoError(t, os.Mkdir(realDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(realDir, "app.sh"), nil, 0o755))
	link := filepath.Join(dir, "link.sh")
	if err := os.Symlink(filepath.Join(realDir, "app.sh"), link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	got, err := resolve(link, false)
	require.NoError(t, err)
	want, _ := filepath.EvalSymlinks(realDir)
	assert.Equal(t, want, got.Dir)
	assert.Equal(t, "app.sh", got.Name)
}

func TestResolve_ExtensionRule(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "noext"), nil, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.sh"), nil, 0o755))

	_, err := Resolve(filepath.Join(dir, "noext"), false)
	assert.ErrorIs(t, err, ErrNoExecutableName)

	got, err := Resolve(filepath.Join(dir, "noext"), true)
	require.NoError(t, err)
	assert.Equal(t, "noext", got.Name)

	got, err = Resolve(filepath.Join(dir, "app.sh"), false)
	require.NoError(t, err)
	assert.Equal(t, "app.sh", got.Name)
}
