package types

import (
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCategoriesFromFile(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "categories.yaml")
	content := `medical_categories:
  - Disease or Syndrome
  - Sign or Symptom
`
	require.NoError(t, os.WriteFile(filePath, []byte(content), 0600))

	set, err := LoadCategories(filePath)
	require.NoError(t, err)

	expected := NewCategorySet([]string{"Disease or Syndrome", "Sign or Symptom"})
	if diff := cmp.Diff(expected, set); diff != "" {
		t.Errorf("Loaded category set mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadCategoriesEmptyPath(t *testing.T) {
	set, err := LoadCategories("")
	require.NoError(t, err)

	if diff := cmp.Diff(DefaultMedicalCategories(), set); diff != "" {
		t.Errorf("Default category set mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, set.Contains("Disease"))
}

func TestLoadCategoriesMissingFile(t *testing.T) {
	_, err := LoadCategories(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestContainsAny(t *testing.T) {
	set := DefaultMedicalCategories()

	assert.True(t, set.ContainsAny([]string{"Intellectual Product", "Disease"}))
	assert.False(t, set.ContainsAny([]string{"Intellectual Product", "Organization"}))
	assert.False(t, set.ContainsAny(nil))
}
