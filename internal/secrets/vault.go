// Package secrets holds secret values loaded from files and reloads them
// on demand, so credentials can be rotated without a restart.
package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
)

// Loader retrieves secrets from a source.
type Loader func() (map[string]string, error)

// FileLoader returns a Loader that reads one secret per file, keyed as in
// files. Surrounding whitespace is trimmed. A missing file is an error.
func FileLoader(files map[string]string) Loader {
	return func() (map[string]string, error) {
		vals := make(map[string]string, len(files))
		for key, path := range files {
			data, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied path
			if err != nil {
				return nil, fmt.Errorf("read secret %s: %w", key, err)
			}
			vals[key] = strings.TrimSpace(string(data))
		}
		return vals, nil
	}
}

// Vault holds secret values in memory and supports atomic reloading.
type Vault struct {
	mu     sync.RWMutex
	values map[string]string
	loader Loader
}

// NewVault creates a Vault, calling the loader once to populate initial values.
func NewVault(loader Loader) (*Vault, error) {
	vals, err := loader()
	if err != nil {
		return nil, fmt.Errorf("initial secret load: %w", err)
	}
	return &Vault{
		values: vals,
		loader: loader,
	}, nil
}

// Get returns the secret for key, or an empty string if not found.
func (v *Vault) Get(key string) string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.values[key]
}

// Reload calls the loader and swaps in the new values atomically.
// If the loader returns an error, existing values are preserved.
func (v *Vault) Reload() error {
	newVals, err := v.loader()
	if err != nil {
		return fmt.Errorf("reload secrets: %w", err)
	}
	v.mu.Lock()
	v.values = newVals
	v.mu.Unlock()
	return nil
}

// ReloadOn reloads the vault each time one of sigs arrives, until ctx is
// done. It blocks; run it in its own goroutine.
func (v *Vault) ReloadOn(ctx context.Context, sigs ...os.Signal) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-ch:
			if err := v.Reload(); err != nil {
				slog.Error("secret reload failed, keeping previous values", "signal", sig.String(), "error", err)
				continue
			}
			slog.Info("secrets reloaded", "signal", sig.String())
		}
	}
}
