package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/qrvault/internal/auth"
	"github.com/dmitrijs2005/qrvault/internal/common"
	"github.com/dmitrijs2005/qrvault/internal/cryptox"
	"github.com/dmitrijs2005/qrvault/internal/models"
)

var errVaultLocked = errors.New("vault is locked; unlock first")

// Put prompts for a name and a secret value and stores them in the
// vault payload. The whole payload is rewritten as one envelope, so
// every put re-encrypts under a fresh IV.
func (a *App) Put(ctx context.Context) error {
	name, err := getSimpleText(a.reader, "Entry name", a.out)
	if err != nil {
		return err
	}
	if name == "" {
		fmt.Fprintln(a.out, "Nothing stored: empty name.")
		return nil
	}

	value, err := getSecret(a.out, "Secret value (input is hidden): ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(value)

	store, err := a.loadVault(ctx)
	if err != nil {
		a.printVaultError(err)
		return nil
	}
	store.Entries[name] = string(value)

	if err := a.saveVault(ctx, store); err != nil {
		a.printVaultError(err)
		return nil
	}

	a.machine.RecordActivity(ctx)
	fmt.Fprintf(a.out, "Stored %q (%d entries).\n", name, len(store.Entries))
	return nil
}

// Get prompts for a name and prints the stored secret.
func (a *App) Get(ctx context.Context) error {
	name, err := getSimpleText(a.reader, "Entry name", a.out)
	if err != nil {
		return err
	}

	store, err := a.loadVault(ctx)
	if err != nil {
		a.printVaultError(err)
		return nil
	}

	value, ok := store.Entries[name]
	if !ok {
		fmt.Fprintf(a.out, "No entry %q.\n", name)
		return nil
	}

	a.machine.RecordActivity(ctx)
	fmt.Fprintln(a.out, value)
	return nil
}

// loadVault reads and decrypts the persisted vault payload. A missing
// payload is an empty store. In biometric-only mode the payload is
// plain JSON; there is no key to decrypt with.
func (a *App) loadVault(ctx context.Context) (*models.VaultStore, error) {
	if a.machine.State() != auth.StateUnlocked {
		return nil, errVaultLocked
	}

	raw, err := a.repo.Get(ctx, common.KeyVaultStore)
	if err != nil {
		return nil, fmt.Errorf("failed to read vault payload: %w", err)
	}
	if raw == nil {
		return models.NewVaultStore(), nil
	}

	if a.cfg.BiometricOnly {
		store := models.NewVaultStore()
		if err := json.Unmarshal(raw, store); err != nil {
			return nil, fmt.Errorf("failed to decode vault payload: %w", err)
		}
		return store, nil
	}

	key := a.machine.EncryptionKey()
	if key == nil {
		return nil, errVaultLocked
	}

	var env cryptox.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to decode vault envelope: %w", err)
	}
	plaintext, err := cryptox.Decrypt(&env, key)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(plaintext)

	store := models.NewVaultStore()
	if err := json.Unmarshal(plaintext, store); err != nil {
		return nil, fmt.Errorf("failed to decode vault payload: %w", err)
	}
	return store, nil
}

// saveVault serializes the store and writes it back, encrypted unless
// running biometric-only.
func (a *App) saveVault(ctx context.Context, store *models.VaultStore) error {
	if a.machine.State() != auth.StateUnlocked {
		return errVaultLocked
	}

	plaintext, err := json.Marshal(store)
	if err != nil {
		return fmt.Errorf("failed to encode vault payload: %w", err)
	}

	raw := plaintext
	if !a.cfg.BiometricOnly {
		defer common.WipeByteArray(plaintext)

		key := a.machine.EncryptionKey()
		if key == nil {
			return errVaultLocked
		}
		env, err := cryptox.Encrypt(plaintext, key)
		if err != nil {
			return err
		}
		raw, err = json.Marshal(env)
		if err != nil {
			return fmt.Errorf("failed to encode vault envelope: %w", err)
		}
	}

	if err := a.repo.Set(ctx, common.KeyVaultStore, raw); err != nil {
		return fmt.Errorf("failed to write vault payload: %w", err)
	}
	return nil
}

// printVaultError renders storage and crypto failures. An integrity
// failure gets its own wording: the data was modified or the key is
// wrong, and retrying will not help.
func (a *App) printVaultError(err error) {
	if errors.Is(err, cryptox.ErrIntegrityFailed) {
		fmt.Fprintln(a.out, "error [INTEGRITY_FAILED]: vault payload failed its integrity check; it was modified or the key is wrong")
		return
	}
	fmt.Fprintln(a.out, "error:", err)
}
