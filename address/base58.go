package address

import (
	"fmt"
	"math/big"
	"strings"
)

// monero-style base58: fixed-width 8-byte blocks encode to 11 characters;
// a trailing short block encodes to a size dictated by encodedBlockSizes,
// unlike bitcoin-style base58 which has no block structure. This avoids
// leading-zero ambiguity without a separate escape character.
const alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

const (
	fullBlockSize        = 8
	fullEncodedBlockSize = 11
)

// encodedBlockSizes[n] is the number of base58 characters produced by
// encoding an n-byte block, for n in [0, fullBlockSize].
var encodedBlockSizes = [fullBlockSize + 1]int{0, 2, 3, 5, 6, 7, 9, 10, 11}

func encodedSizeFor(byteLen int) (int, error) {
	if byteLen < 0 || byteLen > fullBlockSize {
		return 0, fmt.Errorf("block size %d out of range", byteLen)
	}
	return encodedBlockSizes[byteLen], nil
}

func byteSizeForEncoded(encLen int) (int, error) {
	for n, sz := range encodedBlockSizes {
		if sz == encLen {
			return n, nil
		}
	}
	return 0, fmt.Errorf("invalid encoded block length %d", encLen)
}

func encodeBlock(block []byte) (string, error) {
	encLen, err := encodedSizeFor(len(block))
	if err != nil {
		return "", err
	}
	num := new(big.Int).SetBytes(block)
	base := big.NewInt(58)
	mod := new(big.Int)
	buf := make([]byte, encLen)
	for i := encLen - 1; i >= 0; i-- {
		num.DivMod(num, base, mod)
		buf[i] = alphabet[mod.Int64()]
	}
	if num.Sign() != 0 {
		return "", fmt.Errorf("block does not fit in %d base58 characters", encLen)
	}
	return string(buf), nil
}

func decodeBlock(chars string) ([]byte, error) {
	byteLen, err := byteSizeForEncoded(len(chars))
	if err != nil {
		return nil, err
	}
	num := new(big.Int)
	base := big.NewInt(58)
	for i := 0; i < len(chars); i++ {
		idx := strings.IndexByte(alphabet, chars[i])
		if idx < 0 {
			return nil, fmt.Errorf("invalid base58 character %q", chars[i])
		}
		num.Mul(num, base)
		num.Add(num, big.NewInt(int64(idx)))
	}
	if num.BitLen() > byteLen*8 {
		return nil, fmt.Errorf("base58 block %q overflows %d bytes", chars, byteLen)
	}
	out := make([]byte, byteLen)
	num.FillBytes(out)
	return out, nil
}

// encodeBase58 encodes data block-by-block in fullBlockSize chunks.
func encodeBase58(data []byte) (string, error) {
	var sb strings.Builder
	for off := 0; off < len(data); off += fullBlockSize {
		end := off + fullBlockSize
		if end > len(data) {
			end = len(data)
		}
		enc, err := encodeBlock(data[off:end])
		if err != nil {
			return "", err
		}
		sb.WriteString(enc)
	}
	return sb.String(), nil
}

// decodeBase58 decodes s, which must represent exactly wantLen raw bytes
// laid out as monero-style base58 blocks.
func decodeBase58(s string, wantLen int) ([]byte, error) {
	fullBlocks := wantLen / fullBlockSize
	remainder := wantLen % fullBlockSize
	wantEncLen := fullBlocks*fullEncodedBlockSize + encodedBlockSizes[remainder]
	if len(s) != wantEncLen {
		return nil, fmt.Errorf("address has %d characters, want %d", len(s), wantEncLen)
	}

	out := make([]byte, 0, wantLen)
	pos := 0
	for i := 0; i < fullBlocks; i++ {
		block, err := decodeBlock(s[pos : pos+fullEncodedBlockSize])
		if err != nil {
			return nil, err
		}
		out = append(out, block...)
		pos += fullEncodedBlockSize
	}
	if remainder > 0 {
		encLen := encodedBlockSizes[remainder]
		block, err := decodeBlock(s[pos : pos+encLen])
		if err != nil {
			return nil, err
		}
		out = append(out, block...)
	}
	return out, nil
}
