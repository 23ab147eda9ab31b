package cmd

import (
	"path/filepath"
	"testing"

	"github.com/meysamhadeli/docai/code_analyzer/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoverageByFile(t *testing.T) {
	symbols := []models.ApiSymbol{
		{RelativePath: "a.go", DocStatus: models.DocDocumented},
		{RelativePath: "a.go", DocStatus: models.DocMissing},
		{RelativePath: "b.go", DocStatus: models.DocOutdated},
		{RelativePath: "b.go", DocStatus: models.DocDocumented},
	}

	total, files := coverageByFile(symbols)

	assert.Equal(t, Coverage{Total: 4, Documented: 2, Missing: 1, Outdated: 1}, total)
	assert.InDelta(t, 50.0, total.Percent(), 1e-9)
	require.Len(t, files, 2)
	assert.Equal(t, Coverage{Total: 2, Documented: 1, Missing: 1}, *files["a.go"])
	assert.Equal(t, Coverage{Total: 2, Documented: 1, Outdated: 1}, *files["b.go"])
}

func TestCoverage_EmptyIsComplete(t *testing.T) {
	assert.Equal(t, 100.0, Coverage{}.Percent())
}

func TestProjectArg(t *testing.T) {
	cwd, err := filepath.Abs(".")
	require.NoError(t, err)

	path, err := projectArg(nil, 0)
	require.NoError(t, err)
	assert.Equal(t, cwd, path)

	path, err = projectArg([]string{"backup", "sub/dir"}, 1)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cwd, "sub/dir"), path)
}

func TestCommandsAreRegistered(t *testing.T) {
	names := make(map[string]bool)
	for _, command := range rootCmd.Commands() {
		names[command.Name()] = true
	}
	for _, name := range []string{"generate", "analyze", "reset-cache", "rollback", "version"} {
		assert.True(t, names[name], name)
	}
	assert.NotNil(t, generateCmd.Flags().Lookup("dry-run"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
}
