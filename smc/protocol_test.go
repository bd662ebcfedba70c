package smc

import (
	"errors"
	"strconv"
	"testing"
)

func TestEncode(t *testing.T) {
	for _, test := range []struct {
		address int
		body    string
		want    string
	}{
		{0, "LD3", "0LD3\r\n"},
		{0, "PR", "0PR\r\n"},
		{2, "Z", "2Z\r\n"},
		{13, "PZ", "13PZ\r\n"},
	} {
		t.Run(test.want, func(t *testing.T) {
			if got := string(encode(test.address, test.body)); got != test.want {
				t.Errorf("encode(%d, %q) = %q, want %q", test.address, test.body, got, test.want)
			}
		})
	}
}

func TestEncodeUnaddressed(t *testing.T) {
	for _, test := range []struct {
		body string
		want string
	}{
		{"H+", "H+\r\n"},
		{"G", "G\r\n"},
		{"D2000", "D2000\r\n"},
	} {
		if got := string(encodeUnaddressed(test.body)); got != test.want {
			t.Errorf("encodeUnaddressed(%q) = %q, want %q", test.body, got, test.want)
		}
	}
}

func TestParsePosition(t *testing.T) {
	for _, test := range []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"#4000", 4000, false},
		{"#-250", -250, false},
		{"00", 0, false},
		{"A123456", 123456, false},
		{"", 0, true},
		{"#", 0, true},
		{"#12x", 0, true},
		{"#1.5", 0, true},
	} {
		t.Run(test.input, func(t *testing.T) {
			got, err := parsePosition(test.input)
			if test.wantErr {
				if !errors.Is(err, ErrParse) {
					t.Fatalf("parsePosition(%q) error = %v, want ErrParse", test.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parsePosition(%q): %v", test.input, err)
			}
			if got != test.want {
				t.Errorf("parsePosition(%q) = %d, want %d", test.input, got, test.want)
			}
		})
	}
}

func TestParsePositionRoundTrip(t *testing.T) {
	for _, p := range []int{0, 1, -1, 4000, -4000, 1 << 30} {
		for _, prefix := range []string{"#", "A", "?"} {
			got, err := parsePosition(prefix + strconv.Itoa(p))
			if err != nil {
				t.Fatalf("parsePosition(%q%d): %v", prefix, p, err)
			}
			if got != p {
				t.Errorf("parsePosition(%q%d) = %d", prefix, p, got)
			}
		}
	}
}

func TestToDegrees(t *testing.T) {
	for _, test := range []struct {
		raw    int
		perRev int
		ratio  float64
		want   float64
	}{
		{4000, 1000, 0.5, 8},
		{2000, 1000, 1, 2},
		{-2000, 1000, 1, -2},
		{0, 1000, 0.25, 0},
	} {
		if got := toDegrees(test.raw, test.perRev, test.ratio); got != test.want {
			t.Errorf("toDegrees(%d, %d, %v) = %v, want %v", test.raw, test.perRev, test.ratio, got, test.want)
		}
	}
}
