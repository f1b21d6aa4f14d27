package domain

import (
	"errors"
	"testing"
)

func TestNewPayoutDistributionValidation(t *testing.T) {
	tests := []struct {
		name        string
		numerators  []int64
		numOutcomes int
		numTicks    int64
		wantErr     bool
	}{
		{"valid binary", []int64{100, 0}, 2, 100, false},
		{"valid split", []int64{50, 50}, 2, 100, false},
		{"valid scalar-ish", []int64{100, 100, 100}, 3, 300, false},
		{"wrong length", []int64{100}, 2, 100, true},
		{"negative numerator", []int64{-1, 101}, 2, 100, true},
		{"numerator above ticks", []int64{101, 0}, 2, 100, true},
		{"sum too low", []int64{50, 49}, 2, 100, true},
		{"sum too high", []int64{51, 50}, 2, 100, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPayoutDistribution(tt.numerators, tt.numOutcomes, tt.numTicks)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConfiguration) {
					t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.IsZero() {
				t.Fatal("valid distribution should not be zero")
			}
		})
	}
}

func TestPayoutDistributionHashIsContentIdentity(t *testing.T) {
	a, err := NewPayoutDistribution([]int64{300, 0, 0}, 3, 300)
	if err != nil {
		t.Fatalf("build a: %v", err)
	}
	b, err := NewPayoutDistribution([]int64{300, 0, 0}, 3, 300)
	if err != nil {
		t.Fatalf("build b: %v", err)
	}
	if a.Hash() != b.Hash() {
		t.Fatal("equal distributions must hash equal")
	}

	c, err := NewPayoutDistribution([]int64{0, 300, 0}, 3, 300)
	if err != nil {
		t.Fatalf("build c: %v", err)
	}
	if a.Hash() == c.Hash() {
		t.Fatal("different numerator orders must hash differently")
	}
}

func TestPayoutDistributionHashCoversNumTicks(t *testing.T) {
	// Same numerator vector under a different tick count is a different
	// distribution; the tick count is part of the hashed identity.
	a := PayoutDistribution{Numerators: []int64{100, 0}, NumTicks: 100}
	b := PayoutDistribution{Numerators: []int64{100, 0}, NumTicks: 200}
	if a.Hash() == b.Hash() {
		t.Fatal("tick count must be part of the hash")
	}
}

func TestNewPayoutDistributionCopiesInput(t *testing.T) {
	in := []int64{100, 0}
	p, err := NewPayoutDistribution(in, 2, 100)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	h := p.Hash()
	in[0] = 0
	in[1] = 100
	if p.Hash() != h {
		t.Fatal("mutating caller's slice must not change the distribution")
	}
}

func TestPayoutDistributionIsZero(t *testing.T) {
	var p PayoutDistribution
	if !p.IsZero() {
		t.Fatal("zero value should report zero")
	}
}
