package reporting

import (
	"errors"
	"math/big"
	"testing"

	"github.com/alanyoungcy/resolvd/internal/domain"
)

func finalizedFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t, true)
	f.reportDesignated(200, 100, 0)
	f.clock.advance(f.market.params.DesignatedDisputeDuration)
	if err := f.market.TryFinalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	return f
}

func TestCalculateProceeds(t *testing.T) {
	f := finalizedFixture(t)

	tests := []struct {
		name    string
		outcome int
		shares  int64
		want    int64
	}{
		{"winning outcome", 0, 10, 2000},
		{"partial outcome", 1, 10, 1000},
		{"losing outcome", 2, 10, 0},
		{"zero shares", 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.market.CalculateProceeds(tt.outcome, big.NewInt(tt.shares))
			if err != nil {
				t.Fatalf("proceeds: %v", err)
			}
			if got.Int64() != tt.want {
				t.Fatalf("proceeds = %s, want %d", got, tt.want)
			}
		})
	}

	if _, err := f.market.CalculateProceeds(3, big.NewInt(1)); !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Fatalf("expected out-of-range outcome rejected, got %v", err)
	}
	if _, err := f.market.CalculateProceeds(-1, big.NewInt(1)); !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Fatalf("expected negative outcome rejected, got %v", err)
	}
}

func TestProceedsRequireFinalization(t *testing.T) {
	f := newFixture(t, true)
	if _, err := f.market.CalculateProceeds(0, big.NewInt(1)); !errors.Is(err, domain.ErrWrongPhase) {
		t.Fatalf("expected ErrWrongPhase before finalization, got %v", err)
	}
	if _, _, _, err := f.market.DivideUpWinnings(0, big.NewInt(1)); !errors.Is(err, domain.ErrWrongPhase) {
		t.Fatalf("expected ErrWrongPhase before finalization, got %v", err)
	}
}

func TestDivideUpWinnings(t *testing.T) {
	f := finalizedFixture(t)

	// Fixture fee is 100 bps (1%), reporting fee 1 bps. Proceeds for 500
	// shares of outcome 0 are 100000: creator 1000, reporter 10.
	shareholder, creator, reporter, err := f.market.DivideUpWinnings(0, big.NewInt(500))
	if err != nil {
		t.Fatalf("divide: %v", err)
	}
	if creator.Int64() != 1000 {
		t.Fatalf("creator fee = %s, want 1000", creator)
	}
	if reporter.Int64() != 10 {
		t.Fatalf("reporting fee = %s, want 10", reporter)
	}
	if shareholder.Int64() != 100000-1000-10 {
		t.Fatalf("shareholder cut = %s, want %d", shareholder, 100000-1000-10)
	}

	// Lowering the creator fee changes the split.
	if err := f.market.SetCreatorFee(f.owner, 0); err != nil {
		t.Fatalf("lower fee: %v", err)
	}
	shareholder, creator, _, err = f.market.DivideUpWinnings(0, big.NewInt(500))
	if err != nil {
		t.Fatalf("divide: %v", err)
	}
	if creator.Sign() != 0 {
		t.Fatalf("creator fee = %s, want 0", creator)
	}
	if shareholder.Int64() != 100000-10 {
		t.Fatalf("shareholder cut = %s, want %d", shareholder, 100000-10)
	}
}
