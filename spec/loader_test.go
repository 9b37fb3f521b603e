package spec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollandm/slurmherd/errors"
)

func newTestLoader() *Loader {
	return NewLoader([]string{".sbatch", ".job"}, nil)
}

func TestLoadOrdersLexicographically(t *testing.T) {
	dir := t.TempDir()
	// Written out of order on purpose
	writeSpec(t, dir, "c.sbatch", "#!/bin/bash\necho c\n")
	writeSpec(t, dir, "a.sbatch", "#!/bin/bash\necho a\n")
	writeSpec(t, dir, "b.sbatch", "#!/bin/bash\necho b\n")

	loader := newTestLoader()
	specs, skips, err := loader.Load(dir)
	require.NoError(t, err)
	require.Empty(t, skips)
	require.Len(t, specs, 3)

	assert.Equal(t, "a", specs[0].Name)
	assert.Equal(t, "b", specs[1].Name)
	assert.Equal(t, "c", specs[2].Name)
}

func TestLoadIgnoresOtherExtensions(t *testing.T) {
	dir := t.TempDir()
	writeSpec(t, dir, "run.sbatch", "#!/bin/bash\necho hi\n")
	writeSpec(t, dir, "notes.txt", "not a job\n")
	writeSpec(t, dir, "data.csv", "1,2,3\n")

	loader := newTestLoader()
	specs, skips, err := loader.Load(dir)
	require.NoError(t, err)

	assert.Len(t, specs, 1)
	assert.Empty(t, skips)
}

func TestLoadSkipsUnparseableAndContinues(t *testing.T) {
	dir := t.TempDir()
	writeSpec(t, dir, "a.sbatch", "#!/bin/bash\necho a\n")
	writeSpec(t, dir, "broken.sbatch", "") // empty file fails to parse
	writeSpec(t, dir, "z.sbatch", "#!/bin/bash\necho z\n")

	loader := newTestLoader()
	specs, skips, err := loader.Load(dir)
	require.NoError(t, err)

	require.Len(t, specs, 2)
	assert.Equal(t, "a", specs[0].Name)
	assert.Equal(t, "z", specs[1].Name)

	require.Len(t, skips, 1)
	assert.Equal(t, filepath.Join(dir, "broken.sbatch"), skips[0].Path)
	assert.NotEmpty(t, skips[0].Reason)
}

func TestLoadEmptyDirectory(t *testing.T) {
	loader := newTestLoader()
	specs, skips, err := loader.Load(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, specs)
	assert.Empty(t, skips)
}

func TestLoadMissingDirectory(t *testing.T) {
	loader := newTestLoader()
	_, _, err := loader.Load(filepath.Join(t.TempDir(), "does-not-exist"))
	require.Error(t, err)
	assert.True(t, errors.IsDiscoveryError(err))
}

func TestLoadSkipsSubdirectories(t *testing.T) {
	dir := t.TempDir()
	writeSpec(t, dir, "only.sbatch", "#!/bin/bash\necho hi\n")

	sub := filepath.Join(dir, "nested.sbatch") // directory named like a spec
	require.NoError(t, os.Mkdir(sub, 0o755))

	loader := newTestLoader()
	specs, _, err := loader.Load(dir)
	require.NoError(t, err)
	assert.Len(t, specs, 1)
}
