// Package wallet manages the signing keys and SOL balances behind trade
// execution: one primary wallet plus optional sub wallets for concurrent
// entries.
package wallet

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/aitachi/SolSniperPro/internal/domain"
	"github.com/aitachi/SolSniperPro/internal/endpoint"
	"github.com/aitachi/SolSniperPro/internal/solana"
	"github.com/aitachi/SolSniperPro/internal/txbuild"
)

// baseFeeLamports is the flat per-signature fee charged by the network.
const baseFeeLamports = 5_000

// Keypair pairs a signing key with its on-chain address.
type Keypair struct {
	PrivateKey ed25519.PrivateKey
	Address    txbuild.Address
}

// NewKeypair generates a fresh random keypair.
func NewKeypair() (*Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	var addr txbuild.Address
	copy(addr[:], pub)
	return &Keypair{PrivateKey: priv, Address: addr}, nil
}

// keypairFromBytes builds a Keypair from the Solana 64-byte format (32-byte
// seed followed by the 32-byte public key).
func keypairFromBytes(raw []byte) (*Keypair, error) {
	if len(raw) != ed25519.PrivateKeySize {
		return nil, domain.NewError(domain.CodeInvalidInput, "keypair is %d bytes, want %d", len(raw), ed25519.PrivateKeySize)
	}
	priv := ed25519.PrivateKey(raw)
	var addr txbuild.Address
	copy(addr[:], priv.Public().(ed25519.PublicKey))
	return &Keypair{PrivateKey: priv, Address: addr}, nil
}

// LoadKeypair reads a keypair file in either raw 64-byte form or the JSON
// byte-array form produced by solana-keygen.
func LoadKeypair(path string) (*Keypair, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keypair file: %w", err)
	}

	if len(raw) == ed25519.PrivateKeySize {
		return keypairFromBytes(raw)
	}

	var bytes []byte
	if err := json.Unmarshal(raw, &bytes); err != nil {
		return nil, domain.WrapError(domain.CodeInvalidInput, err, "keypair file %s is neither raw bytes nor JSON", path)
	}
	return keypairFromBytes(bytes)
}

// Manager holds the primary wallet, sub wallets and a balance cache backed by
// the endpoint pool.
type Manager struct {
	primary    *Keypair
	subWallets []*Keypair

	pool *endpoint.Pool

	cacheMu sync.RWMutex
	// balance cache in lamports, keyed by base58 address
	balances map[string]uint64
}

// NewManager creates a manager around an existing primary keypair.
func NewManager(primary *Keypair, pool *endpoint.Pool) *Manager {
	return &Manager{
		primary:  primary,
		pool:     pool,
		balances: make(map[string]uint64),
	}
}

// NewManagerFromFile loads the primary wallet from a keypair file.
func NewManagerFromFile(path string, pool *endpoint.Pool) (*Manager, error) {
	primary, err := LoadKeypair(path)
	if err != nil {
		return nil, err
	}
	return NewManager(primary, pool), nil
}

// Primary returns the primary keypair.
func (m *Manager) Primary() *Keypair { return m.primary }

// AddSubWallet registers an existing keypair as a sub wallet.
func (m *Manager) AddSubWallet(kp *Keypair) {
	m.subWallets = append(m.subWallets, kp)
}

// GenerateSubWallet creates, registers and returns a new sub wallet.
func (m *Manager) GenerateSubWallet() (*Keypair, error) {
	kp, err := NewKeypair()
	if err != nil {
		return nil, err
	}
	m.subWallets = append(m.subWallets, kp)
	return kp, nil
}

// SubWallet returns the sub wallet at index, or nil when out of range.
func (m *Manager) SubWallet(index int) *Keypair {
	if index < 0 || index >= len(m.subWallets) {
		return nil
	}
	return m.subWallets[index]
}

// SubWalletCount returns the number of registered sub wallets.
func (m *Manager) SubWalletCount() int { return len(m.subWallets) }

// Addresses returns the primary address followed by every sub wallet address.
func (m *Manager) Addresses() []txbuild.Address {
	addrs := make([]txbuild.Address, 0, len(m.subWallets)+1)
	addrs = append(addrs, m.primary.Address)
	for _, kp := range m.subWallets {
		addrs = append(addrs, kp.Address)
	}
	return addrs
}

// Balance returns the lamport balance of an address, serving from cache when
// present.
func (m *Manager) Balance(ctx context.Context, addr txbuild.Address) (uint64, error) {
	key := addr.String()

	m.cacheMu.RLock()
	cached, ok := m.balances[key]
	m.cacheMu.RUnlock()
	if ok {
		return cached, nil
	}

	lamports, err := endpoint.Execute(ctx, m.pool, func(ctx context.Context, client solana.Client) (uint64, error) {
		return client.GetBalance(ctx, key)
	})
	if err != nil {
		return 0, domain.WrapError(domain.CodeRPCFailed, err, "balance lookup for %s", key)
	}

	m.cacheMu.Lock()
	m.balances[key] = lamports
	m.cacheMu.Unlock()
	return lamports, nil
}

// PrimaryBalance returns the primary wallet's lamport balance.
func (m *Manager) PrimaryBalance(ctx context.Context) (uint64, error) {
	return m.Balance(ctx, m.primary.Address)
}

// ClearBalanceCache drops every cached balance, forcing fresh lookups.
func (m *Manager) ClearBalanceCache() {
	m.cacheMu.Lock()
	m.balances = make(map[string]uint64)
	m.cacheMu.Unlock()
}

// HasSufficientBalance reports whether the address holds at least the
// required lamports.
func (m *Manager) HasSufficientBalance(ctx context.Context, addr txbuild.Address, requiredLamports uint64) (bool, error) {
	balance, err := m.Balance(ctx, addr)
	if err != nil {
		return false, err
	}
	return balance >= requiredLamports, nil
}

// EstimateTotalCost returns the lamports a trade needs up front: the trade
// amount plus the base network fee and the priority fee.
func EstimateTotalCost(amountLamports, priorityFeeLamports uint64) uint64 {
	return amountLamports + baseFeeLamports + priorityFeeLamports
}
