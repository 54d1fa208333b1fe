package progress

import (
	"testing"
	"time"
)

func TestEstimateETA(t *testing.T) {
	// 1 MB/s
	got := EstimateETA(3_600_000_000, 0, 1_000_000)
	if got != "1h" {
		t.Fatalf("expected 1h, got %q", got)
	}

	got = EstimateETA(3_900_000_000, 0, 1_000_000)
	if got != "1h 5m" {
		t.Fatalf("expected 1h 5m, got %q", got)
	}

	got = EstimateETA(10_000_000, 0, 1_000_000)
	if got != "<1m" {
		t.Fatalf("expected <1m, got %q", got)
	}

	got = EstimateETA(1_000_000_000, 1_000_000_000, 1_000_000)
	if got != "0m" {
		t.Fatalf("expected 0m, got %q", got)
	}

	got = EstimateETA(100_000_000_000, 0, 1_000_000)
	if got != "1d 3h" {
		t.Fatalf("expected 1d 3h, got %q", got)
	}
}

func TestEstimateETAInvalidInputs(t *testing.T) {
	if got := EstimateETA(0, 0, 1_000_000); got != "" {
		t.Fatalf("expected empty eta for missing size, got %q", got)
	}
	if got := EstimateETA(1_000_000_000, 0, 0); got != "" {
		t.Fatalf("expected empty eta for missing rate, got %q", got)
	}
}

func TestFormatBytesIEC(t *testing.T) {
	cases := map[int64]string{
		0:       "0 B",
		512:     "512 B",
		1536:    "1.5 KiB",
		4194304: "4.0 MiB",
	}
	for in, want := range cases {
		if got := FormatBytesIEC(in); got != want {
			t.Fatalf("FormatBytesIEC(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatETAUnits(t *testing.T) {
	cases := map[time.Duration]string{
		30 * time.Second:              "<1m",
		12 * time.Minute:              "12m",
		2 * time.Hour:                 "2h",
		49*time.Hour + 10*time.Minute: "2d 1h",
	}
	for in, want := range cases {
		if got := formatETA(in); got != want {
			t.Fatalf("formatETA(%s) = %q, want %q", in, got, want)
		}
	}
}
