package crypto

import (
	"strings"
	"testing"

	"github.com/alanyoungcy/resolvd/internal/domain"
)

// Well-known test vector key; never fund it.
const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func testPayout(t *testing.T) domain.PayoutDistribution {
	t.Helper()
	p, err := domain.NewPayoutDistribution([]int64{300, 0, 0}, 3, 300)
	if err != nil {
		t.Fatalf("payout: %v", err)
	}
	return p
}

func TestSignAndRecoverReport(t *testing.T) {
	s, err := NewSigner(testKeyHex)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	payout := testPayout(t)

	sig, err := s.SignReport("mkt-1", payout)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !strings.HasPrefix(sig, "0x") || len(sig) != 2+130 {
		t.Fatalf("signature format %q", sig)
	}

	got, err := RecoverReporter("mkt-1", payout, sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if got != s.Address() {
		t.Fatalf("recovered %s, want %s", got, s.Address())
	}
}

func TestRecoverRejectsWrongMarket(t *testing.T) {
	s, err := NewSigner("0x" + testKeyHex)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	payout := testPayout(t)

	sig, err := s.SignReport("mkt-1", payout)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	// Recovery over a different market id yields a different (wrong) address.
	got, err := RecoverReporter("mkt-2", payout, sig)
	if err == nil && got == s.Address() {
		t.Fatal("signature must not transfer between markets")
	}
}

func TestRecoverRejectsMalformedSignature(t *testing.T) {
	payout := testPayout(t)
	if _, err := RecoverReporter("mkt-1", payout, "0x1234"); err == nil {
		t.Fatal("expected error for short signature")
	}
	if _, err := RecoverReporter("mkt-1", payout, "zz"); err == nil {
		t.Fatal("expected error for non-hex signature")
	}
}

func TestReportDigestIsStable(t *testing.T) {
	payout := testPayout(t)
	if ReportDigest("mkt-1", payout) != ReportDigest("mkt-1", payout) {
		t.Fatal("digest must be deterministic")
	}
	if ReportDigest("mkt-1", payout) == ReportDigest("mkt-2", payout) {
		t.Fatal("digest must bind the market id")
	}
}

func TestKeyfileRoundTrip(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "hunter2")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	got, err := DecryptKey(blob, "hunter2")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if got != testKeyHex {
		t.Fatalf("round trip = %s, want %s", got, testKeyHex)
	}

	if _, err := DecryptKey(blob, "wrong"); err == nil {
		t.Fatal("expected wrong-password failure")
	}
	if _, err := EncryptKey("nothex", "pw"); err == nil {
		t.Fatal("expected invalid key hex rejected")
	}
	if _, err := EncryptKey(testKeyHex, ""); err == nil {
		t.Fatal("expected empty password rejected")
	}
}

func TestLoadKeyPrecedence(t *testing.T) {
	k, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testKeyHex})
	if err != nil {
		t.Fatalf("load raw: %v", err)
	}
	if k != testKeyHex {
		t.Fatalf("raw key = %s, want prefix stripped", k)
	}
	if _, err := LoadKey(KeyConfig{}); err == nil {
		t.Fatal("expected error with no key source")
	}
}
