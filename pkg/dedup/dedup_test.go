package dedup

import (
	"testing"
	"time"
)

func TestShouldProcessFirstDelivery(t *testing.T) {
	d := New(time.Minute, 100)
	if !d.ShouldProcess("abc") {
		t.Fatal("first delivery must be processed")
	}
}

func TestShouldProcessDuplicateDropped(t *testing.T) {
	d := New(time.Minute, 100)
	d.ShouldProcess("abc")
	if d.ShouldProcess("abc") {
		t.Fatal("redelivery inside the TTL must be dropped")
	}
	if !d.ShouldProcess("def") {
		t.Fatal("a different payload is not a duplicate")
	}
}

func TestShouldProcessEmptyIDAlwaysPasses(t *testing.T) {
	d := New(time.Minute, 100)
	if !d.ShouldProcess("") || !d.ShouldProcess("") {
		t.Fatal("empty ids are never deduplicated")
	}
}

func TestShouldProcessAfterTTL(t *testing.T) {
	d := New(time.Nanosecond, 100)
	d.ShouldProcess("abc")
	time.Sleep(time.Millisecond)
	if !d.ShouldProcess("abc") {
		t.Fatal("expired entry must be processed again")
	}
}
