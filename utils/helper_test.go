package utils_test

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warebot/warebot_backend/utils"
)

func TestParseDecimal(t *testing.T) {
	cases := []struct {
		in       string
		expected string
		wantErr  bool
	}{
		{"12.5", "12.5", false},
		{"  100 ", "100", false},
		{"", "", true},
		{"abc", "", true},
	}
	for _, tc := range cases {
		d, err := utils.ParseDecimal(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseDecimal(%q) expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseDecimal(%q) error: %v", tc.in, err)
		}
		if !d.Equal(decimal.RequireFromString(tc.expected)) {
			t.Fatalf("ParseDecimal(%q) expected %s, got %s", tc.in, tc.expected, d)
		}
	}
}

func TestNewBatchIdShape(t *testing.T) {
	at := time.Date(2026, 8, 26, 14, 30, 0, 0, time.UTC)
	id := utils.NewBatchId("OUT", at)
	parts := strings.Split(id, "-")
	if len(parts) != 3 {
		t.Fatalf("expected prefix-date-frag, got %q", id)
	}
	if parts[0] != "OUT" || parts[1] != "20260826" {
		t.Fatalf("unexpected batch id %q", id)
	}
	if len(parts[2]) != 8 {
		t.Fatalf("fragment length expected 8, got %q", parts[2])
	}
	if id == utils.NewBatchId("OUT", at) {
		t.Fatalf("batch ids must be unique")
	}
}
