package fs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/orgkb/orgkb"
	"github.com/orgkb/orgkb/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogYAML = `procedures:
  - id: proc-wz
    name: Decyzja o warunkach zabudowy
    aliases:
      - warunki zabudowy
    acronyms:
      - WZ
    description: Ustalenie warunków zabudowy dla inwestycji.
    fields:
      - name: steps
        type: text
        required: true
        description: Kolejne kroki postępowania.
      - name: deadline
        type: string
        description: Termin załatwienia sprawy.
  - id: proc-odpady
    name: Deklaracja o wysokości opłaty za gospodarowanie odpadami
`

func TestLoadCatalog(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(catalogYAML), 0644))

	procs, err := fs.LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, procs, 2)

	wz := procs[0]
	assert.Equal(t, "proc-wz", wz.ID)
	assert.Equal(t, "Decyzja o warunkach zabudowy", wz.Name)
	assert.Equal(t, []string{"warunki zabudowy"}, wz.Aliases)
	assert.Equal(t, []string{"WZ"}, wz.Acronyms)
	require.Len(t, wz.Schema.Fields, 2)
	assert.Equal(t, orgkb.FieldText, wz.Schema.Fields[0].Type)
	assert.True(t, wz.Schema.Fields[0].Required)
	// Missing type defaults to string
	assert.Equal(t, orgkb.FieldString, wz.Schema.Fields[1].Type)

	// Procedure without declared fields gets the default schema.
	assert.Equal(t, orgkb.DefaultSchema(), procs[1].Schema)
}

func TestLoadCatalog_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := fs.LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, orgkb.ENOTFOUND, orgkb.ErrorCode(err))
}

func TestLoadCatalog_InvalidYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("procedures: [unclosed"), 0644))

	_, err := fs.LoadCatalog(path)
	require.Error(t, err)
	assert.Equal(t, orgkb.EINVALID, orgkb.ErrorCode(err))
}

func TestLoadCatalog_RejectsInvalidProcedure(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("procedures:\n  - id: proc-x\n"), 0644))

	_, err := fs.LoadCatalog(path)
	require.Error(t, err)
	assert.Equal(t, orgkb.EINVALID, orgkb.ErrorCode(err))
}
