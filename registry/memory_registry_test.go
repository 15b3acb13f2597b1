package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"committed-cart/models"
)

var testRegistry = common.HexToAddress("0x00000000000000000000000000000000000000aa")

func TestMemoryRegistryLookup(t *testing.T) {
	reg := NewMemoryRegistry(Config{})
	require.NoError(t, reg.AddProject(testRegistry, &models.Project{ID: "p1", Name: "Project One", Index: 1}))

	p, err := reg.ProjectByIndex(context.Background(), testRegistry, 1)
	require.NoError(t, err)
	require.Equal(t, "Project One", p.Name)

	// Returned projects are copies.
	p.Name = "mutated"
	again, err := reg.ProjectByIndex(context.Background(), testRegistry, 1)
	require.NoError(t, err)
	require.Equal(t, "Project One", again.Name)

	_, err = reg.ProjectByIndex(context.Background(), testRegistry, 2)
	require.ErrorIs(t, err, ErrProjectNotFound)

	_, err = reg.ProjectByIndex(context.Background(), common.Address{}, 1)
	require.ErrorIs(t, err, ErrProjectNotFound)

	reg.RemoveProject(testRegistry, 1)
	_, err = reg.ProjectByIndex(context.Background(), testRegistry, 1)
	require.ErrorIs(t, err, ErrProjectNotFound)
}

func TestMemoryRegistryRejectsInvalidProject(t *testing.T) {
	reg := NewMemoryRegistry(Config{})
	require.Error(t, reg.AddProject(testRegistry, &models.Project{Name: "no id"}))
	require.Error(t, reg.AddProject(testRegistry, &models.Project{ID: "no-name"}))
	require.Error(t, reg.AddProject(testRegistry, nil))
	require.Zero(t, reg.Len())
}

func TestMemoryRegistryLoadProjectsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "projects.json")
	data := `{
  "registry_address": "0x00000000000000000000000000000000000000aa",
  "projects": [
    {"id": "a", "name": "Alpha", "index": 1},
    {"id": "b", "name": "Beta", "index": 2, "is_hidden": true}
  ]
}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	reg := NewMemoryRegistry(Config{ProjectsFilePath: path})
	require.NoError(t, reg.LoadProjectsFromFile())
	require.Equal(t, 2, reg.Len())

	beta, err := reg.ProjectByIndex(context.Background(), testRegistry, 2)
	require.NoError(t, err)
	require.Equal(t, "Beta", beta.Name)
	require.True(t, beta.IsHidden)
}

func TestMemoryRegistryLoadProjectsFromFileErrors(t *testing.T) {
	dir := t.TempDir()

	reg := NewMemoryRegistry(Config{ProjectsFilePath: filepath.Join(dir, "missing.json")})
	require.Error(t, reg.LoadProjectsFromFile())

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"projects":[{"index":1}]}`), 0644))
	reg = NewMemoryRegistry(Config{ProjectsFilePath: bad})
	require.Error(t, reg.LoadProjectsFromFile())

	nullEntry := filepath.Join(dir, "null.json")
	require.NoError(t, os.WriteFile(nullEntry, []byte(`{"projects":[null]}`), 0644))
	reg = NewMemoryRegistry(Config{ProjectsFilePath: nullEntry})
	require.NotPanics(t, func() {
		require.ErrorContains(t, reg.LoadProjectsFromFile(), "invalid project entry 0")
	})
	require.Zero(t, reg.Len())

	mixed := filepath.Join(dir, "mixed.json")
	require.NoError(t, os.WriteFile(mixed, []byte(`{
  "registry_address": "0x00000000000000000000000000000000000000aa",
  "projects": [
    {"id": "a", "name": "Alpha", "index": 1},
    {"id": "", "name": "Nameless", "index": 2}
  ]
}`), 0644))
	reg = NewMemoryRegistry(Config{ProjectsFilePath: mixed})
	require.NoError(t, reg.AddProject(testRegistry, &models.Project{ID: "z", Name: "Zeta", Index: 9}))
	require.ErrorContains(t, reg.LoadProjectsFromFile(), "invalid project entry 1")
	require.Equal(t, 1, reg.Len())
	_, err := reg.ProjectByIndex(context.Background(), testRegistry, 1)
	require.ErrorIs(t, err, ErrProjectNotFound)
}
