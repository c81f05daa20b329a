package normalize

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/evermark/curation-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func validEvent() model.RawEvent {
	return model.RawEvent{
		Account:        "0xabc",
		ItemID:         "evermark-1",
		Amount:         d(100),
		Cycle:          7,
		Direction:      "DELEGATE",
		TxHash:         "0xdeadbeef",
		BlockTimestamp: 1700000000,
	}
}

func TestNormalize_Valid(t *testing.T) {
	rec, err := Normalize(validEvent())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.AccountID != "0xabc" {
		t.Errorf("expected account 0xabc, got %s", rec.AccountID)
	}
	if rec.ItemID != "evermark-1" {
		t.Errorf("expected item evermark-1, got %s", rec.ItemID)
	}
	if !rec.Amount.Equal(d(100)) {
		t.Errorf("expected amount 100, got %s", rec.Amount)
	}
	if rec.Cycle != 7 {
		t.Errorf("expected cycle 7, got %d", rec.Cycle)
	}
	if rec.Direction != model.DirectionDelegate {
		t.Errorf("expected DELEGATE, got %s", rec.Direction)
	}
	if rec.SourceEventID != "0xdeadbeef" {
		t.Errorf("expected tx hash as source event id, got %s", rec.SourceEventID)
	}
	expected := time.Unix(1700000000, 0).UTC()
	if !rec.ObservedAt.Equal(expected) {
		t.Errorf("expected observed_at %v, got %v", expected, rec.ObservedAt)
	}
}

func TestNormalize_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*model.RawEvent)
		wantErr error
	}{
		{
			name:    "missing account",
			mutate:  func(ev *model.RawEvent) { ev.Account = "" },
			wantErr: ErrMissingAccount,
		},
		{
			name:    "whitespace account",
			mutate:  func(ev *model.RawEvent) { ev.Account = "   " },
			wantErr: ErrMissingAccount,
		},
		{
			name:    "zero amount",
			mutate:  func(ev *model.RawEvent) { ev.Amount = decimal.Zero },
			wantErr: ErrNonPositiveAmount,
		},
		{
			name:    "negative amount",
			mutate:  func(ev *model.RawEvent) { ev.Amount = d(-5) },
			wantErr: ErrNonPositiveAmount,
		},
		{
			name:    "missing direction",
			mutate:  func(ev *model.RawEvent) { ev.Direction = "" },
			wantErr: ErrInvalidDirection,
		},
		{
			name:    "unknown direction",
			mutate:  func(ev *model.RawEvent) { ev.Direction = "TRANSFER" },
			wantErr: ErrInvalidDirection,
		},
		{
			name:    "negative cycle",
			mutate:  func(ev *model.RawEvent) { ev.Cycle = -1 },
			wantErr: ErrNegativeCycle,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ev := validEvent()
			tc.mutate(&ev)
			_, err := Normalize(ev)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestNormalize_DirectionCaseInsensitive(t *testing.T) {
	ev := validEvent()
	ev.Direction = "undelegate"

	rec, err := Normalize(ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Direction != model.DirectionUndelegate {
		t.Errorf("expected UNDELEGATE, got %s", rec.Direction)
	}
}

func TestNormalize_SyntheticID(t *testing.T) {
	ev := validEvent()
	ev.TxHash = ""

	rec, err := Normalize(ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(rec.SourceEventID, "synth:") {
		t.Errorf("expected synthetic id, got %s", rec.SourceEventID)
	}

	// Same event shape must synthesize the same key, so a redelivered
	// hashless event still dedups.
	rec2, err := Normalize(ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.SourceEventID != rec2.SourceEventID {
		t.Errorf("synthetic ids differ: %s vs %s", rec.SourceEventID, rec2.SourceEventID)
	}
}

func TestNormalize_SyntheticIDBounded(t *testing.T) {
	ev := validEvent()
	ev.TxHash = ""
	ev.Account = strings.Repeat("a", 200)
	ev.ItemID = strings.Repeat("b", 200)

	rec, err := Normalize(ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.SourceEventID) > maxSyntheticIDLen {
		t.Errorf("synthetic id too long: %d chars", len(rec.SourceEventID))
	}
}

func TestNormalize_MissingTimestampUsesNow(t *testing.T) {
	ev := validEvent()
	ev.BlockTimestamp = 0

	before := time.Now().UTC()
	rec, err := Normalize(ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ObservedAt.Before(before) {
		t.Errorf("expected observed_at >= %v, got %v", before, rec.ObservedAt)
	}
}
