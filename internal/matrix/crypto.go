// ABOUTME: End-to-end encryption setup for the Matrix frontend
// ABOUTME: Wires the mautrix crypto helper and resets the store when the device ID changed

package matrix

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/crypto/cryptohelper"
)

// Crypto owns the E2EE state of the Matrix client
type Crypto struct {
	helper *cryptohelper.CryptoHelper
	logger *slog.Logger
}

// SetupCrypto enables E2EE on client, storing keys under dataDir. A
// recovery key is used to cross-sign the device; failing that, encryption
// still works unverified.
func SetupCrypto(ctx context.Context, client *mautrix.Client, recoveryKey, dataDir string, logger *slog.Logger) (*Crypto, error) {
	logger = logger.With("component", "matrix-crypto")
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating crypto data directory: %w", err)
	}

	if client.DeviceID == "" {
		resp, err := client.Whoami(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolving device id: %w", err)
		}
		client.DeviceID = resp.DeviceID
	}

	userID := client.UserID.String()
	dbPath := filepath.Join(dataDir, fmt.Sprintf("crypto-%s.db", slugify(userID)))
	logger.Info("setting up encryption", "db", dbPath, "device_id", client.DeviceID)

	if stale, err := deviceChanged(dbPath, client.DeviceID.String()); err != nil {
		logger.Debug("could not check stored device id", "error", err)
	} else if stale {
		logger.Warn("device id changed, resetting crypto store")
		for _, suffix := range []string{"", "-wal", "-shm"} {
			if err := os.Remove(dbPath + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("removing crypto store: %w", err)
			}
		}
	}

	helper, err := cryptohelper.NewCryptoHelper(client, storeKey(userID), dbPath)
	if err != nil {
		return nil, fmt.Errorf("creating crypto helper: %w", err)
	}
	if err := helper.Init(ctx); err != nil {
		return nil, fmt.Errorf("initializing crypto helper: %w", err)
	}
	client.Crypto = helper

	if recoveryKey != "" {
		if machine := helper.Machine(); machine == nil {
			logger.Warn("crypto machine not initialized, skipping verification")
		} else if err := machine.VerifyWithRecoveryKey(ctx, recoveryKey); err != nil {
			logger.Warn("recovery key verification failed, continuing unverified", "error", err)
		} else {
			logger.Info("device verified with recovery key")
		}
	}

	return &Crypto{helper: helper, logger: logger}, nil
}

// Close releases the crypto store
func (c *Crypto) Close() error {
	if c == nil || c.helper == nil {
		return nil
	}
	return c.helper.Close()
}

// deviceChanged reports whether the crypto store at dbPath belongs to a
// device other than deviceID. A missing store or account is not a change.
func deviceChanged(dbPath, deviceID string) (bool, error) {
	if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return false, err
	}
	defer db.Close()

	var stored string
	err = db.QueryRow("SELECT device_id FROM crypto_account LIMIT 1").Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return stored != deviceID, nil
}

// slugify turns "@vistly:matrix.org" into "vistly_matrix.org"
func slugify(userID string) string {
	s := userID
	if len(s) > 0 && s[0] == '@' {
		s = s[1:]
	}
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '.', c == '-', c == '_':
			out = append(out, c)
		case c == ':':
			out = append(out, '_')
		}
	}
	return string(out)
}

// storeKey derives the per-account pickle key for the crypto store
func storeKey(userID string) []byte {
	h := sha256.Sum256([]byte("vistly-matrix-crypto:" + userID))
	return h[:]
}
