package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/plancite/internal/core/domain"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 "+filepath.Base(path)), 0o600))
}

func TestCollectPDFs_Directory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "A-101.pdf"))
	writeFile(t, filepath.Join(dir, "specs", "08 71 00.PDF"))
	writeFile(t, filepath.Join(dir, "notes.txt"))

	files, err := collectPDFs([]string{dir})

	require.NoError(t, err)
	var ids []string
	for _, f := range files {
		ids = append(ids, f.id)
	}
	assert.ElementsMatch(t, []string{"A-101", "specs/08 71 00"}, ids)
}

func TestCollectPDFs_FileAndDuplicate(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "x", "A-101.pdf")
	b := filepath.Join(dir, "y", "A-101.pdf")
	writeFile(t, a)
	writeFile(t, b)

	files, err := collectPDFs([]string{a, a})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "A-101", files[0].id)

	_, err = collectPDFs([]string{a, b})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCollectPDFs_Missing(t *testing.T) {
	_, err := collectPDFs([]string{filepath.Join(t.TempDir(), "nope.pdf")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDocumentID(t *testing.T) {
	assert.Equal(t, "A-101", documentID("/plans", "/plans/A-101.pdf"))
	assert.Equal(t, "civil/C-1", documentID("/plans", "/plans/civil/C-1.pdf"))
	assert.Equal(t, "C-1", documentID("/other", "/plans/C-1.pdf"))
}

func TestIndexCmd_IndexesDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "A-101.pdf"))
	writeFile(t, filepath.Join(dir, "A-102.pdf"))
	s := newTestServices()
	defer s.install()()

	out, err := execute(t, "index", "--force", dir)

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A-101", "A-102"}, s.indexing.indexedIDs())
	assert.True(t, s.indexing.opts.Force)
	require.Len(t, s.indexing.runIDs, 2)
	assert.Equal(t, s.indexing.runIDs[0], s.indexing.runIDs[1], "one run id per invocation")
	_, err = uuid.Parse(s.indexing.runIDs[0])
	assert.NoError(t, err)
	assert.Contains(t, out, "succeeded  A-101  1 pages, 3 chunks, 0 embedded")
	assert.Equal(t, "A-101.pdf", s.indexing.indexed[0].Filename)
}

func TestIndexCmd_CustomID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.pdf")
	writeFile(t, path)
	s := newTestServices()
	defer s.install()()

	_, err := execute(t, "index", "--id", "tower-a-arch", path)

	require.NoError(t, err)
	assert.Equal(t, []string{"tower-a-arch"}, s.indexing.indexedIDs())
}

func TestIndexCmd_IDNeedsSingleFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "A-101.pdf"))
	writeFile(t, filepath.Join(dir, "A-102.pdf"))
	cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "index", "--id", "x", dir)

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIndexCmd_NoPDFs(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "index", t.TempDir())

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIndexCmd_ReportsFailures(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "A-101.pdf"))
	s := newTestServices()
	s.indexing.status = domain.IndexFailed
	defer s.install()()

	_, err := execute(t, "index", dir)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 documents failed")
}
