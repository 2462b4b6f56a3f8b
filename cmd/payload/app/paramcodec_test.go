package app

import (
	"testing"

	"github.com/google/uuid"
)

func TestASCIIRoundTrip(t *testing.T) {
	var params [7]float32
	packASCII("LLZ-east-01", params[:])

	got := unpackASCII(params[:])
	if got != "LLZ-east-01" {
		t.Fatalf("got %q, want %q", got, "LLZ-east-01")
	}
}

func TestASCIIRoundTripEmptyString(t *testing.T) {
	var params [7]float32
	packASCII("", params[:])

	if got := unpackASCII(params[:]); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}

func TestASCIITruncatesBeyondParamCapacity(t *testing.T) {
	var params [3]float32 // 12 bytes of capacity
	long := "this name is definitely too long to fit"
	packASCII(long, params[:])

	got := unpackASCII(params[:])
	if got != long[:12] {
		t.Fatalf("got %q, want %q", got, long[:12])
	}
}

func TestUUIDRoundTrip(t *testing.T) {
	id := uuid.New()
	var params [4]float32
	packUUID(id, params[:])

	if got := unpackUUID(params[:]); got != id {
		t.Fatalf("got %s, want %s", got, id)
	}
}

func TestFreqRoundTrip(t *testing.T) {
	for _, freq := range []uint64{0, 118_000_000, 1<<63 | 1234567} {
		hi, lo := packFreq(freq)
		if got := unpackFreq(hi, lo); got != freq {
			t.Fatalf("freq %d: got %d", freq, got)
		}
	}
}
