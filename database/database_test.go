package database

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations(t *testing.T) {
	for _, driver := range []string{"sqlite", "oracle"} {
		fsys, err := Migrations(driver)
		require.NoError(t, err, driver)

		ups, err := fs.Glob(fsys, "*.up.sql")
		require.NoError(t, err)
		downs, err := fs.Glob(fsys, "*.down.sql")
		require.NoError(t, err)
		assert.NotEmpty(t, ups, driver)
		assert.Len(t, downs, len(ups), driver)
	}

	_, err := Migrations("postgres")
	assert.Error(t, err)
}
