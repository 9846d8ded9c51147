package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShouldProcess_DropsRepeatWithinTTL(t *testing.T) {
	d := New(time.Minute, 10)

	assert.True(t, d.ShouldProcess("a"))
	assert.False(t, d.ShouldProcess("a"))
	assert.True(t, d.ShouldProcess("b"))
}

func TestShouldProcess_AcceptsAfterExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	d := New(time.Minute, 10)
	d.now = func() time.Time { return now }

	assert.True(t, d.ShouldProcess("a"))
	now = now.Add(2 * time.Minute)
	assert.True(t, d.ShouldProcess("a"))
}

func TestShouldProcess_EmptyIDAlwaysPasses(t *testing.T) {
	d := New(time.Minute, 10)
	assert.True(t, d.ShouldProcess(""))
	assert.True(t, d.ShouldProcess(""))

	var nilDeduper *Deduper
	assert.True(t, nilDeduper.ShouldProcess("x"))
}

func TestShouldProcessPayload_HashesContent(t *testing.T) {
	d := New(time.Minute, 10)
	assert.True(t, d.ShouldProcessPayload([]byte(`{"moisture":55}`)))
	assert.False(t, d.ShouldProcessPayload([]byte(`{"moisture":55}`)))
	assert.True(t, d.ShouldProcessPayload([]byte(`{"moisture":56}`)))
	assert.Equal(t, KeyOf([]byte("x")), KeyOf([]byte("x")))
}

func TestEviction_KeepsMapBounded(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	d := New(time.Second, 2)
	d.now = func() time.Time { return now }

	d.ShouldProcess("a")
	d.ShouldProcess("b")
	now = now.Add(5 * time.Second)
	d.ShouldProcess("c")

	assert.LessOrEqual(t, d.Len(), 2)
}
