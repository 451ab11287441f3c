package types

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewBroadcastMessage(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	msg := NewBroadcastMessage("zmq_srv", "hello", now)

	assert.Equal(t, "zmq_srv", msg.Sender)
	assert.Equal(t, "hello", msg.Body)
	assert.Equal(t, uint64(now.Unix()), msg.Timestamp)
}

func TestUnixSeconds_BeforeEpoch(t *testing.T) {
	// A clock set before 1970 must not fail the send.
	before := time.Date(1969, 12, 31, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, uint64(0), UnixSeconds(before))

	msg := NewBroadcastMessage("zmq_srv", "hello", before)
	assert.Equal(t, uint64(0), msg.Timestamp)
}

func TestUnixSeconds_TruncatesSubSecond(t *testing.T) {
	now := time.Unix(1700000000, 999_999_999)
	assert.Equal(t, uint64(1700000000), UnixSeconds(now))
}

func TestBroadcastMessage_Time(t *testing.T) {
	testCases := []struct {
		name      string
		timestamp uint64
		valid     bool
	}{
		{"sentinel zero", 0, false},
		{"one second", 1, true},
		{"typical", 1700000000, true},
		{"last four digit year", maxDisplayableSeconds, true},
		{"past year 9999", maxDisplayableSeconds + 1, false},
		{"beyond int64", math.MaxUint64, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			msg := &BroadcastMessage{Timestamp: tc.timestamp}
			ts, ok := msg.Time()
			assert.Equal(t, tc.valid, ok)
			if ok {
				assert.Equal(t, int64(tc.timestamp), ts.Unix())
				assert.Equal(t, time.UTC, ts.Location())
			}
		})
	}
}
