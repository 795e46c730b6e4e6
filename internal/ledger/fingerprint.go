package ledger

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

const (
	fingerprintDomain = "trustscan.signal.v1"
	contentKeyDomain  = "trustscan.signal-key.v1"
	minPricePlaces    = 8
)

// HashAlgorithm names the digest used for fingerprints.
type HashAlgorithm string

const (
	HashSHA256    HashAlgorithm = "sha256"
	HashKeccak256 HashAlgorithm = "keccak256"
)

// ParseHashAlgorithm accepts the configured algorithm name; empty means sha256.
func ParseHashAlgorithm(name string) (HashAlgorithm, error) {
	switch HashAlgorithm(strings.ToLower(strings.TrimSpace(name))) {
	case "", HashSHA256:
		return HashSHA256, nil
	case HashKeccak256:
		return HashKeccak256, nil
	default:
		return "", fmt.Errorf("unknown hash algorithm %q", name)
	}
}

// FingerprintInput is the tuple bound by a fingerprint.
type FingerprintInput struct {
	StockName  string
	Price      decimal.Decimal
	Strength   int
	ObservedAt time.Time
	Sequence   uint64
}

// CanonicalBytes encodes the tuple big-endian in a fixed field order:
//
//	domain tag | u32 len, name | u32 len, price (>= 8 places) | u32 strength | i64 unix ms | u64 sequence
func CanonicalBytes(in FingerprintInput) []byte {
	buf := appendContent([]byte(fingerprintDomain), in)
	return binary.BigEndian.AppendUint64(buf, in.Sequence)
}

// Fingerprint hashes the canonical encoding and returns lowercase hex.
func Fingerprint(algo HashAlgorithm, in FingerprintInput) string {
	return digest(algo, CanonicalBytes(in))
}

// ContentKey digests the same fields without the sequence position. Two
// submissions of one detected event share a content key even though their
// fingerprints differ by position.
func ContentKey(algo HashAlgorithm, in FingerprintInput) string {
	return digest(algo, appendContent([]byte(contentKeyDomain), in))
}

func appendContent(buf []byte, in FingerprintInput) []byte {
	price := canonicalPrice(in.Price)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(in.StockName)))
	buf = append(buf, in.StockName...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(price)))
	buf = append(buf, price...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(in.Strength))
	return binary.BigEndian.AppendUint64(buf, uint64(in.ObservedAt.UnixMilli()))
}

// canonicalPrice renders the exact value with at least eight decimal places.
// Finer prices keep every significant digit, so distinct values never encode
// to the same string and equal values always do.
func canonicalPrice(price decimal.Decimal) string {
	places := int32(minPricePlaces)
	if exp := normalizedExponent(price); -exp > places {
		places = -exp
	}
	return price.StringFixed(places)
}

func normalizedExponent(d decimal.Decimal) int32 {
	coef := d.Coefficient()
	exp := d.Exponent()
	if coef.Sign() == 0 {
		return 0
	}
	ten := big.NewInt(10)
	rem := new(big.Int)
	for {
		q, r := new(big.Int).QuoRem(coef, ten, rem)
		if r.Sign() != 0 {
			return exp
		}
		coef = q
		exp++
	}
}

func digest(algo HashAlgorithm, payload []byte) string {
	switch algo {
	case HashKeccak256:
		return hex.EncodeToString(crypto.Keccak256(payload))
	default:
		sum := sha256.Sum256(payload)
		return hex.EncodeToString(sum[:])
	}
}
