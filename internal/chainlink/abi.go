package chainlink

import (
	"encoding/hex"
	"fmt"
	"math"
	"math/big"
	"strings"
)

// Function selectors for the aggregator proxy.
const (
	selectorLatestRoundData = "0xfeaf968c" // latestRoundData()
	selectorDecimals        = "0x313ce567" // decimals()
)

// roundDataLen is five 32-byte words:
// roundId, answer, startedAt, updatedAt, answeredInRound.
const roundDataLen = 160

var (
	twoTo256 = new(big.Int).Lsh(big.NewInt(1), 256)
	mask64   = new(big.Int).SetUint64(math.MaxUint64)
)

// roundData is the decoded latestRoundData() return.
type roundData struct {
	RoundID   *big.Int // uint80: phase in the high bits, round counter below
	Answer    *big.Int // int256, scaled by 10^decimals
	StartedAt int64
	UpdatedAt int64
}

// Seq derives the dedup sequence from the proxy round id. The low 64 bits
// hold the per-phase round counter, which is unique within any bounded
// retention window.
func (r roundData) Seq() uint64 {
	return new(big.Int).And(r.RoundID, mask64).Uint64()
}

// decodeHex strips the 0x prefix and decodes an eth_call result.
func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex result: %w", err)
	}
	return b, nil
}

// parseRoundData decodes the five-word latestRoundData() payload.
func parseRoundData(b []byte) (roundData, error) {
	if len(b) < roundDataLen {
		return roundData{}, fmt.Errorf("round data too short: %d bytes", len(b))
	}

	return roundData{
		RoundID:   new(big.Int).SetBytes(b[0:32]),
		Answer:    parseInt256(b[32:64]),
		StartedAt: new(big.Int).SetBytes(b[64:96]).Int64(),
		UpdatedAt: new(big.Int).SetBytes(b[96:128]).Int64(),
	}, nil
}

// parseInt256 interprets a 32-byte word as two's-complement.
func parseInt256(b []byte) *big.Int {
	i := new(big.Int).SetBytes(b)
	if len(b) == 32 && b[0]&0x80 != 0 {
		i.Sub(i, twoTo256)
	}
	return i
}

// parseUint8 decodes a single-word decimals() result.
func parseUint8(b []byte) (int32, error) {
	if len(b) < 32 {
		return 0, fmt.Errorf("decimals result too short: %d bytes", len(b))
	}
	return int32(b[31]), nil
}
