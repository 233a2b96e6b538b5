package solana

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// MetadataProgramID is the Metaplex token metadata program.
const MetadataProgramID = "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"

// TokenMetadata is the decoded name/symbol of a mint's Metaplex metadata
// account.
type TokenMetadata struct {
	Name   string
	Symbol string
}

// FetchTokenMetadata derives the metadata PDA for a mint, fetches the
// account and decodes name and symbol. Returns (nil, nil) when the mint has
// no metadata account.
func FetchTokenMetadata(ctx context.Context, rpc RPCClient, mint string) (*TokenMetadata, error) {
	pda, err := DeriveMetadataPDA(mint)
	if err != nil {
		return nil, fmt.Errorf("derive metadata pda: %w", err)
	}

	info, err := rpc.GetAccountInfo(ctx, pda)
	if err != nil {
		return nil, err
	}
	if info == nil || info.Data == "" {
		return nil, nil
	}

	md, err := decodeMetadata(info.Data)
	if err != nil {
		return nil, fmt.Errorf("decode metadata for %s: %w", mint, err)
	}
	return md, nil
}

// DeriveMetadataPDA derives the Metaplex metadata address for a mint:
// seeds ["metadata", metadata_program, mint] under the metadata program.
func DeriveMetadataPDA(mint string) (string, error) {
	programBytes, err := base58.Decode(MetadataProgramID)
	if err != nil {
		return "", err
	}
	mintBytes, err := base58.Decode(mint)
	if err != nil {
		return "", fmt.Errorf("decode mint: %w", err)
	}

	seeds := [][]byte{[]byte("metadata"), programBytes, mintBytes}
	pda := derivePDA(seeds, programBytes)
	if pda == "" {
		return "", fmt.Errorf("no valid bump seed for mint %s", mint)
	}
	return pda, nil
}

// derivePDA derives a Program Derived Address using the Solana algorithm:
// sha256(seeds || bump || program_id || "ProgramDerivedAddress"), taking the
// first bump (from 255 down) whose hash is off the ed25519 curve.
func derivePDA(seeds [][]byte, programID []byte) string {
	for bump := byte(255); bump > 0; bump-- {
		data := make([]byte, 0)
		for _, seed := range seeds {
			data = append(data, seed...)
		}
		data = append(data, bump)
		data = append(data, programID...)
		data = append(data, []byte("ProgramDerivedAddress")...)

		hash := sha256.Sum256(data)

		if !isOnCurve(hash[:]) {
			return base58.Encode(hash[:])
		}
	}

	return ""
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}

// decodeMetadata parses a Metaplex metadata account (base64 payload).
// Layout: key(1) | update_authority(32) | mint(32) | name | symbol | ...
// where name and symbol are u32-length-prefixed, null-padded strings.
func decodeMetadata(data string) (*TokenMetadata, error) {
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode account data: %w", err)
	}

	const headerLen = 1 + 32 + 32
	offset := headerLen

	name, offset, err := readBorshString(decoded, offset)
	if err != nil {
		return nil, fmt.Errorf("read name: %w", err)
	}
	symbol, _, err := readBorshString(decoded, offset)
	if err != nil {
		return nil, fmt.Errorf("read symbol: %w", err)
	}

	return &TokenMetadata{
		Name:   strings.TrimRight(name, "\x00"),
		Symbol: strings.TrimRight(symbol, "\x00"),
	}, nil
}

// readBorshString reads a u32-LE length-prefixed string at offset and
// returns the string and the offset past it.
func readBorshString(data []byte, offset int) (string, int, error) {
	if offset+4 > len(data) {
		return "", 0, fmt.Errorf("data too short for length prefix at %d", offset)
	}
	length := int(binary.LittleEndian.Uint32(data[offset:]))
	offset += 4

	if length < 0 || offset+length > len(data) {
		return "", 0, fmt.Errorf("string length %d out of bounds at %d", length, offset)
	}
	return string(data[offset : offset+length]), offset + length, nil
}
