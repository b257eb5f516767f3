package domain

import (
	"testing"
	"time"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1+n, 0, 0, 0, 0, time.UTC)
}

func TestBarValid(t *testing.T) {
	tests := []struct {
		name string
		bar  Bar
		want bool
	}{
		{"ok", Bar{Open: 10, High: 12, Low: 9, Close: 11, Volume: 100}, true},
		{"negative volume", Bar{Open: 10, High: 12, Low: 9, Close: 11, Volume: -1}, false},
		{"open above high", Bar{Open: 13, High: 12, Low: 9, Close: 11, Volume: 1}, false},
		{"close below low", Bar{Open: 10, High: 12, Low: 9, Close: 8, Volume: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.bar.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPricePanelAvailability(t *testing.T) {
	dates := []time.Time{day(0), day(1), day(2)}
	p := NewPricePanel(dates, []string{"ACME"})
	p.Set("ACME", 0, Bar{Close: 100})
	p.Set("ACME", 2, Bar{Close: 102})

	if _, ok := p.Bar("ACME", 1); ok {
		t.Errorf("expected day 1 to be unavailable")
	}
	bar, ok := p.Bar("ACME", 0)
	if !ok || bar.Close != 100 {
		t.Errorf("expected day 0 close 100, got %v ok=%v", bar, ok)
	}

	closes := p.Closes(1)
	if _, present := closes["ACME"]; present {
		t.Errorf("Closes(1) should omit ACME on an unavailable day")
	}
}

func TestIndicatorPanelWarmup(t *testing.T) {
	dates := []time.Time{day(0), day(1), day(2)}
	ip := NewIndicatorPanel(dates)
	ip.SetSeries("SMA2", "ACME", []float64{0, 1.5, 2.5}, []bool{false, true, true})

	if _, ok := ip.At("SMA2", "ACME", 0); ok {
		t.Errorf("warm-up sample should be unavailable")
	}
	v, ok := ip.At("SMA2", "ACME", 1)
	if !ok || v != 1.5 {
		t.Errorf("At(1) = %v, %v; want 1.5, true", v, ok)
	}
}

func TestPositionRecompute(t *testing.T) {
	pos := Position{Symbol: "ACME", Quantity: 10, EntryPrice: 90}
	pos.Recompute(100, 2000)
	if pos.MarketValue != 1000 {
		t.Errorf("MarketValue = %v, want 1000", pos.MarketValue)
	}
	if pos.UnrealizedPnL != 100 {
		t.Errorf("UnrealizedPnL = %v, want 100", pos.UnrealizedPnL)
	}
	if pos.Weight != 0.5 {
		t.Errorf("Weight = %v, want 0.5", pos.Weight)
	}
}

func TestBacktestConfigValidate(t *testing.T) {
	base := BacktestConfig{
		Strategy:       TradingStrategy{EntryThreshold: 0.5, ExitThreshold: 0.5},
		Universe:       []string{"ACME"},
		StartDate:      day(0),
		EndDate:        day(10),
		InitialCapital: 10000,
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	bad := base
	bad.EndDate = day(0)
	bad.StartDate = day(10)
	if err := bad.Validate(); err == nil {
		t.Errorf("expected validation error for start >= end")
	}

	bad2 := base
	bad2.Universe = []string{"1NVALID$"}
	if err := bad2.Validate(); err == nil {
		t.Errorf("expected validation error for non-alpha symbol")
	}
}

func TestJobCloneIsDeep(t *testing.T) {
	started := day(1)
	job := &Job{
		ID:        "job-1",
		State:     JobRunning,
		StartedAt: &started,
		Error:     &CoreErrorView{Kind: "VALIDATION", Fields: map[string]any{"a": 1}},
	}
	clone := job.Clone()
	*clone.StartedAt = day(5)
	clone.Error.Fields["a"] = 2

	if job.StartedAt.Equal(day(5)) {
		t.Errorf("mutating clone.StartedAt leaked into original")
	}
	if job.Error.Fields["a"] != 1 {
		t.Errorf("mutating clone.Error.Fields leaked into original")
	}
}
