package txbuild

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aitachi/SolSniperPro/internal/domain"
)

func testKeypair(t *testing.T) (ed25519.PrivateKey, Address) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	var addr Address
	copy(addr[:], pub)
	return priv, addr
}

func testBlockhash() string {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	return base58.Encode(raw)
}

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")
	require.NoError(t, err)
	assert.Equal(t, "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8", addr.String())

	_, err = ParseAddress("not-base58-0OIl")
	assert.True(t, domain.IsCode(err, domain.CodeInvalidInput))

	_, err = ParseAddress("abc")
	assert.True(t, domain.IsCode(err, domain.CodeInvalidInput))
}

func TestFindProgramAddress_DeterministicAndOffCurve(t *testing.T) {
	seeds := [][]byte{[]byte("metadata"), RaydiumAMMProgram.Bytes()}

	a1, bump1, err := FindProgramAddress(seeds, RaydiumAMMProgram)
	require.NoError(t, err)
	a2, bump2, err := FindProgramAddress(seeds, RaydiumAMMProgram)
	require.NoError(t, err)

	assert.Equal(t, a1, a2)
	assert.Equal(t, bump1, bump2)
	assert.False(t, isOnCurve(a1.Bytes()))
}

func TestAssociatedTokenAddress(t *testing.T) {
	_, wallet := testKeypair(t)
	_, mint := testKeypair(t)

	ata, err := AssociatedTokenAddress(wallet, mint)
	require.NoError(t, err)
	assert.False(t, ata.IsZero())
	assert.NotEqual(t, wallet, ata)

	// Different mint, different account.
	_, otherMint := testKeypair(t)
	other, err := AssociatedTokenAddress(wallet, otherMint)
	require.NoError(t, err)
	assert.NotEqual(t, ata, other)
}

func TestAppendCompactU16(t *testing.T) {
	tests := []struct {
		value uint16
		want  []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{16384, []byte{0x80, 0x80, 0x01}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, appendCompactU16(nil, tt.value), "value %d", tt.value)
	}
}

func TestBuild_SignedTransferTransaction(t *testing.T) {
	priv, from := testKeypair(t)
	_, to := testKeypair(t)

	tx, err := NewBuilder().Build(priv, testBlockhash(), SOLTransfer(from, to, 1_000_000))
	require.NoError(t, err)
	require.LessOrEqual(t, len(tx), MaxTransactionSize)

	// One signature, then the message.
	require.Equal(t, byte(1), tx[0])
	signature := tx[1:65]
	message := tx[65:]
	assert.True(t, ed25519.Verify(priv.Public().(ed25519.PublicKey), message, signature))

	// Header: 1 required signature, 0 readonly signed, 2 readonly unsigned
	// (compute budget and system programs).
	assert.Equal(t, byte(1), message[0])
	assert.Equal(t, byte(0), message[1])
	assert.Equal(t, byte(2), message[2])

	// Fee payer is the first account key.
	require.Equal(t, byte(4), message[3], "expected 4 account keys")
	assert.Equal(t, from.Bytes(), message[4:36])
}

func TestBuild_PrependsComputeBudget(t *testing.T) {
	priv, from := testKeypair(t)
	_, to := testKeypair(t)

	tx, err := NewBuilder().
		WithComputeUnits(400_000).
		WithPriorityFee(123_456).
		Build(priv, testBlockhash(), SOLTransfer(from, to, 1))
	require.NoError(t, err)

	message := tx[65:]
	// Skip header (3), key count (1), 4 keys, blockhash (32).
	offset := 3 + 1 + 4*32 + 32
	require.Equal(t, byte(3), message[offset], "expected 3 instructions")

	// First instruction: compute unit limit [2, u32].
	ix := message[offset+1:]
	accounts := int(ix[1])
	data := ix[2+accounts+1:]
	assert.Equal(t, byte(2), data[0])
	assert.Equal(t, uint32(400_000), binary.LittleEndian.Uint32(data[1:5]))
}

func TestBuild_RejectsOversizedTransaction(t *testing.T) {
	priv, from := testKeypair(t)

	huge := Instruction{
		ProgramID: SystemProgram,
		Accounts:  []AccountMeta{{Address: from, Signer: true, Writable: true}},
		Data:      make([]byte, MaxTransactionSize),
	}

	_, err := NewBuilder().Build(priv, testBlockhash(), huge)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeTxTooLarge))
}

func TestBuild_RejectsBadInput(t *testing.T) {
	priv, from := testKeypair(t)
	_, to := testKeypair(t)

	_, err := NewBuilder().Build(priv, testBlockhash())
	assert.True(t, domain.IsCode(err, domain.CodeInvalidInput))

	_, err = NewBuilder().Build(priv, "bogus!!", SOLTransfer(from, to, 1))
	assert.True(t, domain.IsCode(err, domain.CodeInvalidInput))
}

func TestBuilderFor(t *testing.T) {
	for _, venue := range []domain.Venue{domain.VenueRaydium, domain.VenueOrca, domain.VenuePumpFun} {
		b, err := BuilderFor(venue)
		require.NoError(t, err)
		assert.Equal(t, venue, b.Venue())
	}

	_, err := BuilderFor(domain.Venue("serum"))
	assert.True(t, domain.IsCode(err, domain.CodeUnsupportedVenue))
}

func TestRaydiumSwap_InstructionLayout(t *testing.T) {
	_, wallet := testKeypair(t)
	_, pool := testKeypair(t)
	_, src := testKeypair(t)
	_, dst := testKeypair(t)

	b, err := BuilderFor(domain.VenueRaydium)
	require.NoError(t, err)

	ix, err := b.BuildSwap(SwapParams{
		Wallet:             wallet,
		Pool:               pool,
		SourceAccount:      src,
		DestinationAccount: dst,
		AmountIn:           1_000_000_000,
		MinAmountOut:       9_500_000_000,
	})
	require.NoError(t, err)

	assert.Equal(t, RaydiumAMMProgram, ix.ProgramID)
	require.Len(t, ix.Data, 17)
	assert.Equal(t, byte(9), ix.Data[0])
	assert.Equal(t, uint64(1_000_000_000), binary.LittleEndian.Uint64(ix.Data[1:9]))
	assert.Equal(t, uint64(9_500_000_000), binary.LittleEndian.Uint64(ix.Data[9:17]))

	// Pool is writable, wallet signs.
	assert.True(t, ix.Accounts[1].Writable)
	assert.True(t, ix.Accounts[4].Signer)
}

func TestSwap_RejectsZeroAmount(t *testing.T) {
	_, wallet := testKeypair(t)
	_, pool := testKeypair(t)

	for _, venue := range []domain.Venue{domain.VenueRaydium, domain.VenueOrca, domain.VenuePumpFun} {
		b, err := BuilderFor(venue)
		require.NoError(t, err)
		_, err = b.BuildSwap(SwapParams{Wallet: wallet, Pool: pool})
		assert.True(t, domain.IsCode(err, domain.CodeInvalidInput), "venue %s", venue)
	}
}

func TestSwapTransaction_FitsSizeLimit(t *testing.T) {
	priv, wallet := testKeypair(t)
	_, pool := testKeypair(t)
	_, mint := testKeypair(t)

	src, err := AssociatedTokenAddress(wallet, mint)
	require.NoError(t, err)
	_, outMint := testKeypair(t)
	dst, err := AssociatedTokenAddress(wallet, outMint)
	require.NoError(t, err)

	b, err := BuilderFor(domain.VenueRaydium)
	require.NoError(t, err)
	ix, err := b.BuildSwap(SwapParams{
		Wallet:             wallet,
		Pool:               pool,
		SourceAccount:      src,
		DestinationAccount: dst,
		AmountIn:           1,
		MinAmountOut:       1,
	})
	require.NoError(t, err)

	tx, err := NewBuilder().Build(priv, testBlockhash(), ix)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(tx), MaxTransactionSize)
}
