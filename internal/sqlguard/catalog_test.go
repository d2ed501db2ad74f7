package sqlguard

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	catalog := DefaultCatalog()

	assert.Equal(t, []string{"activities", "chitalishte"}, catalog.Tables())
	assert.True(t, catalog.HasTable("chitalishte"))
	assert.True(t, catalog.IsKnownColumn("chitalishte", "members_count"))
	assert.False(t, catalog.IsKnownColumn("chitalishte", "member_count"))

	assert.True(t, catalog.IsNullable("chitalishte", "founded_year"))
	assert.False(t, catalog.IsNullable("chitalishte", "name"))
	assert.True(t, catalog.IsNullableAnywhere("participants"))

	assert.True(t, catalog.IsTextColumn("region"))
	assert.False(t, catalog.IsTextColumn("town"))
	assert.True(t, catalog.IsCompositeTextColumn("town"))

	child, ok := catalog.ChildTableOf("activities")
	require.True(t, ok)
	assert.Equal(t, "chitalishte", child.Parent)
	assert.Equal(t, "chitalishte.id", child.ParentKey)
}

func TestDefaultCatalog_Corrections(t *testing.T) {
	catalog := DefaultCatalog()

	correct, ok := catalog.CorrectedColumnName("member_count")
	require.True(t, ok)
	assert.Equal(t, "members_count", correct)

	correct, ok = catalog.CorrectedColumnName("OBLAST")
	require.True(t, ok)
	assert.Equal(t, "region", correct)

	_, ok = catalog.CorrectedColumnName("members_count")
	assert.False(t, ok)
}

func TestDefaultCatalog_CaseInsensitiveLookups(t *testing.T) {
	catalog := DefaultCatalog()

	assert.True(t, catalog.HasTable("Chitalishte"))
	assert.True(t, catalog.IsKnownColumn("CHITALISHTE", "Name"))
	assert.True(t, catalog.IsTextColumn("Region"))
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	data := `
tables:
  libraries:
    - id
    - title
    - rating
  loans:
    - id
    - library_id
    - returned_at
nullable:
  libraries:
    - rating
text_columns:
  - title
composite_columns:
  - title
corrections:
  - wrong: ratings
    correct: rating
child_tables:
  loans:
    parent: libraries
    parent_key: libraries.id
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	catalog, err := LoadCatalog(path)
	require.NoError(t, err)

	assert.True(t, catalog.IsKnownColumn("libraries", "rating"))
	assert.True(t, catalog.IsNullable("libraries", "rating"))
	assert.True(t, catalog.IsCompositeTextColumn("title"))

	correct, ok := catalog.CorrectedColumnName("ratings")
	require.True(t, ok)
	assert.Equal(t, "rating", correct)

	child, ok := catalog.ChildTableOf("loans")
	require.True(t, ok)
	assert.Equal(t, "libraries", child.Parent)
}

func TestLoadCatalog_MissingFile(t *testing.T) {
	_, err := LoadCatalog("/nonexistent/catalog.yaml")
	assert.Error(t, err)
}

func TestLoadCatalog_UnknownNullableColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	data := `
tables:
  libraries:
    - id
nullable:
  libraries:
    - rating
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	_, err := LoadCatalog(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rating")
}

func TestLoadCatalog_UnknownChildParent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	data := `
tables:
  loans:
    - id
child_tables:
  loans:
    parent: libraries
    parent_key: libraries.id
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	_, err := LoadCatalog(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "libraries")
}

func TestCatalog_ColumnsSorted(t *testing.T) {
	catalog := DefaultCatalog()

	cols := catalog.Columns("activities")
	assert.Equal(t, []string{"category", "chitalishte_id", "id", "name", "participants"}, cols)
}
