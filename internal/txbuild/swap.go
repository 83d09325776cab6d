package txbuild

import (
	"encoding/binary"

	"github.com/aitachi/SolSniperPro/internal/domain"
)

// SwapParams carries everything a venue needs to build its swap instruction.
type SwapParams struct {
	// Wallet signs and pays for the swap.
	Wallet Address
	// Pool is the venue's pool or bonding-curve account.
	Pool Address
	// SourceAccount is the wallet's token account being debited.
	SourceAccount Address
	// DestinationAccount is the wallet's token account being credited.
	DestinationAccount Address
	// AmountIn is the input amount in base units.
	AmountIn uint64
	// MinAmountOut is the slippage floor in output base units.
	MinAmountOut uint64
}

// SwapBuilder builds the venue-specific swap instruction.
type SwapBuilder interface {
	Venue() domain.Venue
	BuildSwap(p SwapParams) (Instruction, error)
}

// BuilderFor returns the swap builder for a venue.
func BuilderFor(venue domain.Venue) (SwapBuilder, error) {
	switch venue {
	case domain.VenueRaydium:
		return raydiumBuilder{}, nil
	case domain.VenueOrca:
		return orcaBuilder{}, nil
	case domain.VenuePumpFun:
		return pumpFunBuilder{}, nil
	default:
		return nil, domain.NewError(domain.CodeUnsupportedVenue, "no swap builder for venue %q", venue)
	}
}

func validateSwapParams(p SwapParams) error {
	if p.AmountIn == 0 {
		return domain.NewError(domain.CodeInvalidInput, "swap amount is zero")
	}
	if p.Wallet.IsZero() || p.Pool.IsZero() {
		return domain.NewError(domain.CodeInvalidInput, "swap wallet and pool are required")
	}
	return nil
}

// raydiumBuilder targets Raydium AMM V4.
type raydiumBuilder struct{}

func (raydiumBuilder) Venue() domain.Venue { return domain.VenueRaydium }

// BuildSwap encodes the AMM V4 swap_base_in layout:
// [9, amount_in u64 LE, min_amount_out u64 LE].
func (raydiumBuilder) BuildSwap(p SwapParams) (Instruction, error) {
	if err := validateSwapParams(p); err != nil {
		return Instruction{}, err
	}

	data := make([]byte, 17)
	data[0] = 9
	binary.LittleEndian.PutUint64(data[1:], p.AmountIn)
	binary.LittleEndian.PutUint64(data[9:], p.MinAmountOut)

	return Instruction{
		ProgramID: RaydiumAMMProgram,
		Accounts: []AccountMeta{
			{Address: TokenProgram},
			{Address: p.Pool, Writable: true},
			{Address: p.SourceAccount, Writable: true},
			{Address: p.DestinationAccount, Writable: true},
			{Address: p.Wallet, Signer: true},
		},
		Data: data,
	}, nil
}

// orcaBuilder targets Orca Whirlpool.
type orcaBuilder struct{}

// orcaSwapDiscriminator is the Anchor discriminator for Whirlpool's swap.
var orcaSwapDiscriminator = [8]byte{0xf8, 0xc6, 0x9e, 0x91, 0xe1, 0x75, 0x87, 0xc8}

func (orcaBuilder) Venue() domain.Venue { return domain.VenueOrca }

func (orcaBuilder) BuildSwap(p SwapParams) (Instruction, error) {
	if err := validateSwapParams(p); err != nil {
		return Instruction{}, err
	}

	data := make([]byte, 24)
	copy(data, orcaSwapDiscriminator[:])
	binary.LittleEndian.PutUint64(data[8:], p.AmountIn)
	binary.LittleEndian.PutUint64(data[16:], p.MinAmountOut)

	return Instruction{
		ProgramID: OrcaWhirlpoolProgram,
		Accounts: []AccountMeta{
			{Address: TokenProgram},
			{Address: p.Pool, Writable: true},
			{Address: p.SourceAccount, Writable: true},
			{Address: p.DestinationAccount, Writable: true},
			{Address: p.Wallet, Signer: true},
		},
		Data: data,
	}, nil
}

// pumpFunBuilder targets the pump.fun bonding curve.
type pumpFunBuilder struct{}

// pumpFunBuyDiscriminator is the Anchor discriminator for pump.fun's buy.
var pumpFunBuyDiscriminator = [8]byte{0x66, 0x06, 0x3d, 0x12, 0x01, 0xda, 0xeb, 0xea}

func (pumpFunBuilder) Venue() domain.Venue { return domain.VenuePumpFun }

func (pumpFunBuilder) BuildSwap(p SwapParams) (Instruction, error) {
	if err := validateSwapParams(p); err != nil {
		return Instruction{}, err
	}

	// Layout: discriminator, token amount, max SOL cost. MinAmountOut plays
	// the token-amount role; AmountIn bounds the spend.
	data := make([]byte, 24)
	copy(data, pumpFunBuyDiscriminator[:])
	binary.LittleEndian.PutUint64(data[8:], p.MinAmountOut)
	binary.LittleEndian.PutUint64(data[16:], p.AmountIn)

	return Instruction{
		ProgramID: PumpFunProgram,
		Accounts: []AccountMeta{
			{Address: TokenProgram},
			{Address: p.Pool, Writable: true},
			{Address: p.DestinationAccount, Writable: true},
			{Address: p.Wallet, Signer: true, Writable: true},
		},
		Data: data,
	}, nil
}
