// Package txbuild serializes, signs and validates legacy Solana transactions
// without pulling in a full SDK: swap and transfer instructions, compute
// budget prefixes and program derived addresses.
package txbuild

import (
	"crypto/sha256"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"github.com/aitachi/SolSniperPro/internal/domain"
)

// Address is a 32-byte Solana account address.
type Address [32]byte

// ParseAddress decodes a base58 address string.
func ParseAddress(s string) (Address, error) {
	var a Address
	raw, err := base58.Decode(s)
	if err != nil {
		return a, domain.WrapError(domain.CodeInvalidInput, err, "invalid address %q", s)
	}
	if len(raw) != 32 {
		return a, domain.NewError(domain.CodeInvalidInput, "address %q decodes to %d bytes, want 32", s, len(raw))
	}
	copy(a[:], raw)
	return a, nil
}

// MustAddress parses a known-good address and panics otherwise. For
// package-level program ID constants only.
func MustAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(fmt.Sprintf("txbuild: bad address constant %q: %v", s, err))
	}
	return a
}

// String returns the base58 form.
func (a Address) String() string { return base58.Encode(a[:]) }

// Bytes returns the raw 32 bytes.
func (a Address) Bytes() []byte { return a[:] }

// IsZero reports whether the address is all zeroes.
func (a Address) IsZero() bool { return a == Address{} }

// Well-known program IDs.
var (
	SystemProgram          = MustAddress("11111111111111111111111111111111")
	TokenProgram           = MustAddress("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	AssociatedTokenProgram = MustAddress("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
	ComputeBudgetProgram   = MustAddress("ComputeBudget111111111111111111111111111111")

	RaydiumAMMProgram    = MustAddress("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")
	OrcaWhirlpoolProgram = MustAddress("whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc")
	PumpFunProgram       = MustAddress("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")

	// WSOLMint is the wrapped-SOL mint, the input side of every buy.
	WSOLMint = MustAddress("So11111111111111111111111111111111111111112")
)

const pdaMarker = "ProgramDerivedAddress"

// FindProgramAddress derives a PDA: starting from bump 255, hash
// seeds || bump || programID || marker until the result lands off the ed25519
// curve.
func FindProgramAddress(seeds [][]byte, programID Address) (Address, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		data := make([]byte, 0, 128)
		for _, seed := range seeds {
			data = append(data, seed...)
		}
		data = append(data, byte(bump))
		data = append(data, programID[:]...)
		data = append(data, []byte(pdaMarker)...)

		hash := sha256.Sum256(data)
		if !isOnCurve(hash[:]) {
			var a Address
			copy(a[:], hash[:])
			return a, uint8(bump), nil
		}
	}
	return Address{}, 0, domain.NewError(domain.CodeInvalidInput, "no viable bump seed for program %s", programID)
}

// AssociatedTokenAddress derives the wallet's associated token account for a
// mint.
func AssociatedTokenAddress(wallet, mint Address) (Address, error) {
	seeds := [][]byte{wallet[:], TokenProgram[:], mint[:]}
	addr, _, err := FindProgramAddress(seeds, AssociatedTokenProgram)
	return addr, err
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
