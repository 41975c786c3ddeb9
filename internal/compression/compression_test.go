package compression

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in      string
		want    Algorithm
		wantErr bool
	}{
		{"", None, false},
		{"none", None, false},
		{" Snappy ", Snappy, false},
		{"zstd", None, true},
	}
	for _, tt := range tests {
		got, err := ParseAlgorithm(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseAlgorithm(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseAlgorithm(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if Snappy.String() != "snappy" || None.String() != "none" {
		t.Error("unexpected algorithm names")
	}
}

func TestGetCompressor(t *testing.T) {
	for _, algo := range []Algorithm{None, Snappy} {
		c, err := GetCompressor(algo)
		if err != nil {
			t.Fatalf("GetCompressor(%v) error = %v", algo, err)
		}
		if c.Algorithm() != algo {
			t.Errorf("expected %v, got %v", algo, c.Algorithm())
		}
	}
	if _, err := GetCompressor(Algorithm(9)); err == nil {
		t.Error("expected error for unknown algorithm")
	}
}

func TestSnappyCompressor(t *testing.T) {
	c := NewSnappyCompressor()
	original := []byte(strings.Repeat(`{"metric":"speed","value":42.5}`, 20))

	compressed, err := c.Compress(original)
	if err != nil {
		t.Fatal(err)
	}
	if len(compressed) >= len(original) {
		t.Errorf("expected repetitive payload to shrink: %d >= %d", len(compressed), len(original))
	}

	out, err := c.Decompress(compressed)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, original) {
		t.Error("decompressed payload differs")
	}

	if out, err := c.Compress(nil); err != nil || len(out) != 0 {
		t.Error("empty input should stay empty")
	}
	if _, err := c.Decompress([]byte{0xff, 0xff, 0xff}); err == nil {
		t.Error("expected error for garbage input")
	}
}

func TestFrame(t *testing.T) {
	payload := []byte(`{"vehicle_id":"truck-1","metric":"speed","value":12}`)

	plain, err := Frame(None, payload)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(plain, payload) {
		t.Error("None should leave the payload untouched")
	}

	framed, err := Frame(Snappy, payload)
	if err != nil {
		t.Fatal(err)
	}
	if framed[0] != frameMagic || Algorithm(framed[1]) != Snappy {
		t.Errorf("unexpected header % x", framed[:2])
	}

	for name, in := range map[string][]byte{"plain": plain, "snappy": framed} {
		out, err := Unframe(in)
		if err != nil {
			t.Fatalf("%s: Unframe() error = %v", name, err)
		}
		if !bytes.Equal(out, payload) {
			t.Errorf("%s: payload differs after Unframe", name)
		}
	}

	if _, err := Frame(Algorithm(7), payload); err == nil {
		t.Error("expected error for unknown algorithm")
	}
}

func TestUnframe_Corrupt(t *testing.T) {
	tests := map[string][]byte{
		"truncated":         {frameMagic},
		"unknown algorithm": {frameMagic, 9, 1, 2},
		"bad snappy body":   {frameMagic, byte(Snappy), 0xff, 0xff, 0xff},
	}
	for name, in := range tests {
		if _, err := Unframe(in); !errors.Is(err, ErrCorruptFrame) {
			t.Errorf("%s: expected ErrCorruptFrame, got %v", name, err)
		}
	}

	if out, err := Unframe(nil); err != nil || len(out) != 0 {
		t.Error("empty input should pass through")
	}
}
