// ABOUTME: Tests for crypto store helpers
// ABOUTME: Checks slug generation and detection of a crypto store left by another device

package matrix

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	assert.Equal(t, "vistly_matrix.org", slugify("@vistly:matrix.org"))
	assert.Equal(t, "a-b_c_host", slugify("@a-b_c:host"))
	assert.Equal(t, "weird", slugify("we/ird"))
}

func TestStoreKeyDeterministic(t *testing.T) {
	assert.Equal(t, storeKey("@a:b"), storeKey("@a:b"))
	assert.NotEqual(t, storeKey("@a:b"), storeKey("@c:b"))
	assert.Len(t, storeKey("@a:b"), 32)
}

func TestDeviceChanged(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "crypto.db")

	changed, err := deviceChanged(dbPath, "DEV1")
	require.NoError(t, err)
	assert.False(t, changed, "no store yet")

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE crypto_account (account_id TEXT PRIMARY KEY, device_id TEXT NOT NULL)`)
	require.NoError(t, err)

	changed, err = deviceChanged(dbPath, "DEV1")
	require.NoError(t, err)
	assert.False(t, changed, "no account yet")

	_, err = db.Exec(`INSERT INTO crypto_account (account_id, device_id) VALUES ('a', 'DEV1')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	changed, err = deviceChanged(dbPath, "DEV1")
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = deviceChanged(dbPath, "DEV2")
	require.NoError(t, err)
	assert.True(t, changed)
}
