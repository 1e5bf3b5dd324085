package database

import (
	"context"
	"fmt"
	"sync"
)

var (
	backendMu      sync.RWMutex
	backendName    string
	identityStore  func() IdentityStore
	ledgerStore    func() Ledger
	backendCloser  func() error
	backendEnabled bool
)

// RegisterBackend registers the identity store and ledger constructors of the
// active storage backend. Called once at startup by the command that opened it.
func RegisterBackend(name string, store func() IdentityStore, ledger func() Ledger, closer func() error) {
	backendMu.Lock()
	defer backendMu.Unlock()
	backendName = name
	identityStore = store
	ledgerStore = ledger
	backendCloser = closer
	backendEnabled = true
}

// IsInitialized returns whether a storage backend has been registered.
func IsInitialized() bool {
	backendMu.RLock()
	defer backendMu.RUnlock()
	return backendEnabled
}

// BackendName returns the name of the registered backend.
func BackendName() string {
	backendMu.RLock()
	defer backendMu.RUnlock()
	return backendName
}

// GetIdentityStore returns the IdentityStore of the registered backend.
func GetIdentityStore(ctx context.Context) (IdentityStore, error) {
	backendMu.RLock()
	defer backendMu.RUnlock()
	if !backendEnabled {
		return nil, fmt.Errorf("storage backend not initialized")
	}
	if identityStore == nil {
		return nil, fmt.Errorf("%s identity store not registered", backendName)
	}
	return identityStore(), nil
}

// GetLedger returns the Ledger of the registered backend.
func GetLedger(ctx context.Context) (Ledger, error) {
	backendMu.RLock()
	defer backendMu.RUnlock()
	if !backendEnabled {
		return nil, fmt.Errorf("storage backend not initialized")
	}
	if ledgerStore == nil {
		return nil, fmt.Errorf("%s ledger not registered", backendName)
	}
	return ledgerStore(), nil
}

// CloseBackend releases the resources of the registered backend.
func CloseBackend() error {
	backendMu.Lock()
	defer backendMu.Unlock()
	if !backendEnabled {
		return nil
	}
	var err error
	if backendCloser != nil {
		err = backendCloser()
	}
	backendEnabled = false
	identityStore, ledgerStore, backendCloser = nil, nil, nil
	if err != nil {
		return fmt.Errorf("closing %s backend: %w", backendName, err)
	}
	return nil
}
