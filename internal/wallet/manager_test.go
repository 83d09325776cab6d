package wallet

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aitachi/SolSniperPro/internal/endpoint"
	"github.com/aitachi/SolSniperPro/internal/solana"
)

// balanceClient is a solana.Client stub that serves one balance and counts
// lookups.
type balanceClient struct {
	lamports uint64
	calls    atomic.Int64
}

func (c *balanceClient) Endpoint() string { return "http://stub" }

func (c *balanceClient) GetBalance(ctx context.Context, address string) (uint64, error) {
	c.calls.Add(1)
	return c.lamports, nil
}

func (c *balanceClient) GetLatestBlockhash(ctx context.Context) (string, error) {
	return "blockhash", nil
}

func (c *balanceClient) GetSlot(ctx context.Context) (uint64, error) { return 1, nil }

func (c *balanceClient) SendTransaction(ctx context.Context, serialized []byte) (string, error) {
	return "sig", nil
}

func (c *balanceClient) GetSignatureStatuses(ctx context.Context, signatures []string) ([]*solana.SignatureStatus, error) {
	return make([]*solana.SignatureStatus, len(signatures)), nil
}

func testManager(t *testing.T, client *balanceClient) *Manager {
	t.Helper()
	pool := endpoint.NewPool([]solana.Client{client})
	primary, err := NewKeypair()
	require.NoError(t, err)
	return NewManager(primary, pool)
}

func TestLoadKeypair_RawBytes(t *testing.T) {
	kp, err := NewKeypair()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "key.bin")
	require.NoError(t, os.WriteFile(path, kp.PrivateKey, 0o600))

	loaded, err := LoadKeypair(path)
	require.NoError(t, err)
	assert.Equal(t, kp.Address, loaded.Address)
}

func TestLoadKeypair_JSONByteArray(t *testing.T) {
	kp, err := NewKeypair()
	require.NoError(t, err)

	raw, err := json.Marshal([]byte(kp.PrivateKey))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	loaded, err := LoadKeypair(path)
	require.NoError(t, err)
	assert.Equal(t, kp.Address, loaded.Address)
}

func TestLoadKeypair_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("not a keypair"), 0o600))

	_, err := LoadKeypair(path)
	assert.Error(t, err)

	_, err = LoadKeypair(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestManager_SubWallets(t *testing.T) {
	m := testManager(t, &balanceClient{})
	assert.Equal(t, 0, m.SubWalletCount())

	first, err := m.GenerateSubWallet()
	require.NoError(t, err)
	_, err = m.GenerateSubWallet()
	require.NoError(t, err)

	assert.Equal(t, 2, m.SubWalletCount())
	assert.Equal(t, first.Address, m.SubWallet(0).Address)
	assert.Nil(t, m.SubWallet(5))
	assert.Nil(t, m.SubWallet(-1))

	addrs := m.Addresses()
	require.Len(t, addrs, 3)
	assert.Equal(t, m.Primary().Address, addrs[0])
}

func TestManager_BalanceCaching(t *testing.T) {
	client := &balanceClient{lamports: 3_000_000_000}
	m := testManager(t, client)

	ctx := context.Background()
	balance, err := m.PrimaryBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3_000_000_000), balance)

	// Second lookup hits the cache, not the endpoint.
	_, err = m.PrimaryBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), client.calls.Load())

	m.ClearBalanceCache()
	_, err = m.PrimaryBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), client.calls.Load())
}

func TestManager_HasSufficientBalance(t *testing.T) {
	client := &balanceClient{lamports: 1_000_000_000}
	m := testManager(t, client)

	ctx := context.Background()
	ok, err := m.HasSufficientBalance(ctx, m.Primary().Address, 900_000_000)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.HasSufficientBalance(ctx, m.Primary().Address, 1_000_000_001)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEstimateTotalCost(t *testing.T) {
	// 1 SOL + (5000 base + 50000 priority) lamports.
	total := EstimateTotalCost(1_000_000_000, 50_000)
	assert.Equal(t, uint64(1_000_055_000), total)
}
