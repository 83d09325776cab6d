package txbuild

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/mr-tron/base58"

	"github.com/aitachi/SolSniperPro/internal/domain"
)

// MaxTransactionSize is the Solana packet limit for a serialized transaction.
const MaxTransactionSize = 1232

// AccountMeta describes how an instruction touches an account.
type AccountMeta struct {
	Address  Address
	Signer   bool
	Writable bool
}

// Instruction is a single program invocation.
type Instruction struct {
	ProgramID Address
	Accounts  []AccountMeta
	Data      []byte
}

// appendCompactU16 writes Solana's shortvec length prefix.
func appendCompactU16(buf []byte, v uint16) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(buf, b)
		}
		buf = append(buf, b|0x80)
	}
}

// setComputeUnitLimit builds a ComputeBudget instruction capping compute
// units.
func setComputeUnitLimit(units uint32) Instruction {
	data := make([]byte, 5)
	data[0] = 2
	binary.LittleEndian.PutUint32(data[1:], units)
	return Instruction{ProgramID: ComputeBudgetProgram, Data: data}
}

// setComputeUnitPrice builds a ComputeBudget instruction setting the priority
// fee in micro-lamports per compute unit.
func setComputeUnitPrice(microLamports uint64) Instruction {
	data := make([]byte, 9)
	data[0] = 3
	binary.LittleEndian.PutUint64(data[1:], microLamports)
	return Instruction{ProgramID: ComputeBudgetProgram, Data: data}
}

// SOLTransfer builds a System Program transfer of lamports.
func SOLTransfer(from, to Address, lamports uint64) Instruction {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:], 2)
	binary.LittleEndian.PutUint64(data[4:], lamports)
	return Instruction{
		ProgramID: SystemProgram,
		Accounts: []AccountMeta{
			{Address: from, Signer: true, Writable: true},
			{Address: to, Writable: true},
		},
		Data: data,
	}
}

// Builder assembles signed legacy transactions. Every transaction gets a
// compute unit limit and a priority fee instruction prepended.
type Builder struct {
	computeUnits uint32
	priorityFee  uint64
}

// NewBuilder creates a Builder with a 200k compute unit cap and a 50k
// micro-lamport priority fee.
func NewBuilder() *Builder {
	return &Builder{computeUnits: 200_000, priorityFee: 50_000}
}

// WithComputeUnits overrides the compute unit cap.
func (b *Builder) WithComputeUnits(units uint32) *Builder {
	b.computeUnits = units
	return b
}

// WithPriorityFee overrides the priority fee in micro-lamports per compute
// unit.
func (b *Builder) WithPriorityFee(microLamports uint64) *Builder {
	b.priorityFee = microLamports
	return b
}

// Build compiles the instructions into a legacy message, signs it with the
// fee payer's key, and returns the wire bytes. Transactions over the packet
// limit are rejected before they ever reach an endpoint.
func (b *Builder) Build(signer ed25519.PrivateKey, blockhash string, instructions ...Instruction) ([]byte, error) {
	if len(instructions) == 0 {
		return nil, domain.NewError(domain.CodeInvalidInput, "transaction has no instructions")
	}

	blockhashBytes, err := base58.Decode(blockhash)
	if err != nil || len(blockhashBytes) != 32 {
		return nil, domain.NewError(domain.CodeInvalidInput, "invalid blockhash %q", blockhash)
	}

	var feePayer Address
	copy(feePayer[:], signer.Public().(ed25519.PublicKey))

	all := make([]Instruction, 0, len(instructions)+2)
	all = append(all, setComputeUnitLimit(b.computeUnits), setComputeUnitPrice(b.priorityFee))
	all = append(all, instructions...)

	message, err := compileMessage(feePayer, blockhashBytes, all)
	if err != nil {
		return nil, err
	}

	signature := ed25519.Sign(signer, message)

	// Legacy wire format: compact array of signatures, then the message.
	tx := make([]byte, 0, 1+len(signature)+len(message))
	tx = appendCompactU16(tx, 1)
	tx = append(tx, signature...)
	tx = append(tx, message...)

	if len(tx) > MaxTransactionSize {
		return nil, domain.NewError(domain.CodeTxTooLarge,
			"transaction is %d bytes (max %d)", len(tx), MaxTransactionSize)
	}
	return tx, nil
}

// SignatureOf extracts the base58 signature from a serialized single-signer
// transaction produced by Build.
func SignatureOf(tx []byte) string {
	if len(tx) < 65 || tx[0] != 1 {
		return ""
	}
	return base58.Encode(tx[1:65])
}

// compileMessage lays out the legacy message: header, account keys sorted by
// privilege (writable signers, readonly signers, writable, readonly),
// blockhash, compiled instructions.
func compileMessage(feePayer Address, blockhash []byte, instructions []Instruction) ([]byte, error) {
	type privilege struct {
		signer   bool
		writable bool
	}

	privs := map[Address]*privilege{
		feePayer: {signer: true, writable: true},
	}
	order := []Address{feePayer}

	note := func(addr Address, signer, writable bool) {
		p, ok := privs[addr]
		if !ok {
			p = &privilege{}
			privs[addr] = p
			order = append(order, addr)
		}
		p.signer = p.signer || signer
		p.writable = p.writable || writable
	}

	for _, ix := range instructions {
		note(ix.ProgramID, false, false)
		for _, acct := range ix.Accounts {
			note(acct.Address, acct.Signer, acct.Writable)
		}
	}

	var writableSigners, readonlySigners, writable, readonly []Address
	for _, addr := range order {
		p := privs[addr]
		switch {
		case p.signer && p.writable:
			writableSigners = append(writableSigners, addr)
		case p.signer:
			readonlySigners = append(readonlySigners, addr)
		case p.writable:
			writable = append(writable, addr)
		default:
			readonly = append(readonly, addr)
		}
	}

	if len(writableSigners) == 0 || writableSigners[0] != feePayer {
		return nil, domain.NewError(domain.CodeInvalidInput, "fee payer must be the first writable signer")
	}

	keys := make([]Address, 0, len(order))
	keys = append(keys, writableSigners...)
	keys = append(keys, readonlySigners...)
	keys = append(keys, writable...)
	keys = append(keys, readonly...)

	index := make(map[Address]byte, len(keys))
	for i, addr := range keys {
		index[addr] = byte(i)
	}

	msg := make([]byte, 0, 256)

	// Header: required signatures, readonly signed, readonly unsigned.
	msg = append(msg,
		byte(len(writableSigners)+len(readonlySigners)),
		byte(len(readonlySigners)),
		byte(len(readonly)))

	msg = appendCompactU16(msg, uint16(len(keys)))
	for _, addr := range keys {
		msg = append(msg, addr[:]...)
	}

	msg = append(msg, blockhash...)

	msg = appendCompactU16(msg, uint16(len(instructions)))
	for _, ix := range instructions {
		msg = append(msg, index[ix.ProgramID])
		msg = appendCompactU16(msg, uint16(len(ix.Accounts)))
		for _, acct := range ix.Accounts {
			msg = append(msg, index[acct.Address])
		}
		msg = appendCompactU16(msg, uint16(len(ix.Data)))
		msg = append(msg, ix.Data...)
	}

	return msg, nil
}
