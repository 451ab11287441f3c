package types

import "time"

// maxDisplayableSeconds is 9999-12-31T23:59:59Z, the last instant that renders
// with a four-digit year.
const maxDisplayableSeconds = 253402300799

// BroadcastMessage is the single payload carried by one transport frame.
type BroadcastMessage struct {
	Sender    string `cbor:"1,keyasint" json:"sender"`
	Body      string `cbor:"2,keyasint" json:"body"`
	Timestamp uint64 `cbor:"3,keyasint" json:"timestamp"` // seconds since the Unix epoch, 0 if unknown
}

// NewBroadcastMessage builds a message stamped with now.
func NewBroadcastMessage(sender, body string, now time.Time) *BroadcastMessage {
	return &BroadcastMessage{
		Sender:    sender,
		Body:      body,
		Timestamp: UnixSeconds(now),
	}
}

// UnixSeconds converts now to whole seconds since the epoch. A clock that
// reads before the epoch yields 0 instead of an error.
func UnixSeconds(now time.Time) uint64 {
	secs := now.Unix()
	if secs < 0 {
		return 0
	}
	return uint64(secs)
}

// Time interprets the timestamp. It reports false for the 0 sentinel and for
// values past year 9999.
func (m *BroadcastMessage) Time() (time.Time, bool) {
	if m.Timestamp == 0 || m.Timestamp > maxDisplayableSeconds {
		return time.Time{}, false
	}
	return time.Unix(int64(m.Timestamp), 0).UTC(), true
}
