package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotnet-test-explorer/dte/types"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewRegistryRequiresManifestFile(t *testing.T) {
	_, err := NewRegistry(Config{})
	require.ErrorContains(t, err, "test manifest file is required")
}

func TestNewRegistryBuildsTree(t *testing.T) {
	path := writeManifest(t, `
suites:
  - id: MyApp.Tests
    source: bin/Debug/MyApp.Tests.dll
    suites:
      - id: MyApp.Tests.Calculator
        tests:
          - id: MyApp.Tests.Calculator.Adds
          - id: MyApp.Tests.Calculator.Divides
    tests:
      - id: MyApp.Tests.Smoke
  - id: Other.Tests
    source: bin/Debug/Other.Tests.dll
    tests:
      - id: Other.Tests.Ping
`)

	r, err := NewRegistry(Config{ManifestFile: path})
	require.NoError(t, err)

	root := r.Root()
	require.NotNil(t, root)
	assert.Equal(t, types.RootID, root.Node.ID)
	assert.Equal(t, []string{"MyApp.Tests", "Other.Tests"}, root.Node.ChildIDs())

	suite := r.Get("MyApp.Tests.Calculator")
	require.NotNil(t, suite)
	assert.True(t, suite.Node.IsSuite())
	assert.Equal(t, []string{"MyApp.Tests.Calculator.Adds", "MyApp.Tests.Calculator.Divides"}, suite.Node.ChildIDs())

	leaves := r.Get("MyApp.Tests").Node.Leaves()
	ids := make([]string, 0, len(leaves))
	for _, l := range leaves {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, []string{"MyApp.Tests.Calculator.Adds", "MyApp.Tests.Calculator.Divides", "MyApp.Tests.Smoke"}, ids)

	assert.Nil(t, r.Get("NoSuchNode"))
}

func TestNewRegistrySourceInheritance(t *testing.T) {
	path := writeManifest(t, `
suites:
  - id: Parent
    source: bin/Parent.dll
    suites:
      - id: Parent.Child
        tests:
          - id: Parent.Child.T1
          - id: Parent.Child.T2
            source: bin/Override.dll
`)

	r, err := NewRegistry(Config{ManifestFile: path})
	require.NoError(t, err)

	assert.Equal(t, "bin/Parent.dll", r.Get("Parent.Child").Node.Source)
	assert.Equal(t, "bin/Parent.dll", r.Get("Parent.Child.T1").Node.Source)
	assert.Equal(t, "bin/Override.dll", r.Get("Parent.Child.T2").Node.Source)
}

func TestNewRegistryRejectsDuplicateIDs(t *testing.T) {
	path := writeManifest(t, `
suites:
  - id: Dup
    source: a.dll
  - id: Dup
    source: b.dll
`)

	_, err := NewRegistry(Config{ManifestFile: path})
	require.ErrorContains(t, err, `duplicate node id "Dup"`)
}

func TestNewRegistryRejectsSuiteWithoutSource(t *testing.T) {
	path := writeManifest(t, `
suites:
  - id: NoSource
    tests:
      - id: NoSource.T
`)

	_, err := NewRegistry(Config{ManifestFile: path})
	require.ErrorContains(t, err, "has no source assembly")
}

func TestNewRegistryRejectsEmptyIDs(t *testing.T) {
	path := writeManifest(t, `
suites:
  - id: S
    source: s.dll
    tests:
      - source: t.dll
`)

	_, err := NewRegistry(Config{ManifestFile: path})
	require.ErrorContains(t, err, "empty id")
}

func TestNewRegistryMissingFile(t *testing.T) {
	_, err := NewRegistry(Config{ManifestFile: filepath.Join(t.TempDir(), "nope.yaml")})
	require.ErrorContains(t, err, "reading manifest file")
}

func TestReloadReplacesTree(t *testing.T) {
	path := writeManifest(t, `
suites:
  - id: Before
    source: before.dll
`)

	r, err := NewRegistry(Config{ManifestFile: path})
	require.NoError(t, err)
	require.NotNil(t, r.Get("Before"))

	require.NoError(t, os.WriteFile(path, []byte(`
suites:
  - id: After
    source: after.dll
`), 0o644))

	require.NoError(t, r.Reload())
	assert.Nil(t, r.Get("Before"))
	assert.NotNil(t, r.Get("After"))
	assert.Equal(t, []string{"After"}, r.Root().Node.ChildIDs())
}
