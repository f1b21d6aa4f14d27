package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/resolvd/internal/domain"
)

// reportDomainTag separates report digests from any other signed payloads a
// reporter's key might produce. Bump the version on any change to the digest
// layout.
const reportDomainTag = "resolvd/designated-report/v1"

// ReportDigest computes the digest a designated reporter signs to authorize a
// report: keccak256 over the domain tag, the market id, and the 32-byte
// big-endian encodings of the distribution's tick count and numerators.
func ReportDigest(marketID string, payout domain.PayoutDistribution) common.Hash {
	buf := make([]byte, 0, len(reportDomainTag)+len(marketID)+(len(payout.Numerators)+1)*32)
	buf = append(buf, []byte(reportDomainTag)...)
	buf = append(buf, []byte(marketID)...)
	buf = append(buf, common.LeftPadBytes(big.NewInt(payout.NumTicks).Bytes(), 32)...)
	for _, n := range payout.Numerators {
		buf = append(buf, common.LeftPadBytes(big.NewInt(n).Bytes(), 32)...)
	}
	return common.BytesToHash(ethcrypto.Keccak256(buf))
}

// Signer signs report digests with a secp256k1 key.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewSigner creates a Signer from a hex-encoded secp256k1 private key (with
// or without 0x prefix).
func NewSigner(privateKeyHex string) (*Signer, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}
	return &Signer{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
	}, nil
}

// Address returns the address derived from the signer's private key.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignReport signs the report digest for a market/payout pair and returns a
// hex-encoded 65-byte signature (r || s || v, v in {27,28}).
func (s *Signer) SignReport(marketID string, payout domain.PayoutDistribution) (string, error) {
	digest := ReportDigest(marketID, payout)
	sig, err := ethcrypto.Sign(digest.Bytes(), s.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: signing: %w", err)
	}

	// go-ethereum returns v in {0,1}; normalize to {27,28}.
	if sig[64] < 27 {
		sig[64] += 27
	}
	return "0x" + hex.EncodeToString(sig), nil
}

// RecoverReporter recovers the address that signed a report. Callers compare
// it against the market's designated reporter.
func RecoverReporter(marketID string, payout domain.PayoutDistribution, sigHex string) (common.Address, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto/signer: invalid signature hex: %w", err)
	}
	if len(raw) != 65 {
		return common.Address{}, fmt.Errorf("crypto/signer: expected 65-byte signature, got %d bytes", len(raw))
	}

	sig := make([]byte, 65)
	copy(sig, raw)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	digest := ReportDigest(marketID, payout)
	pub, err := ethcrypto.SigToPub(digest.Bytes(), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto/signer: recovering signer: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}
