package balance

import (
	"bytes"
	"strconv"
)

// keyBuilder renders canonical split keys into reused buffers.
//
// A key is the two teams' ascending comma-joined ID lists, ordered
// lexicographically and joined by "|", so a split and its mirror share one
// key.
type keyBuilder struct {
	ids  []int64 // roster IDs in ascending order
	a, b []byte
	out  []byte
}

func newKeyBuilder(ids []int64) *keyBuilder {
	return &keyBuilder{ids: ids}
}

// build returns the key for the split where bits set in mask form one team.
// The returned slice is overwritten by the next call.
func (kb *keyBuilder) build(mask uint64) []byte {
	kb.a, kb.b = kb.a[:0], kb.b[:0]
	for i, id := range kb.ids {
		if mask&(1<<uint(i)) != 0 {
			kb.a = appendID(kb.a, id)
		} else {
			kb.b = appendID(kb.b, id)
		}
	}
	first, second := kb.a, kb.b
	if bytes.Compare(second, first) < 0 {
		first, second = second, first
	}
	kb.out = append(kb.out[:0], first...)
	kb.out = append(kb.out, '|')
	kb.out = append(kb.out, second...)
	return kb.out
}

func appendID(buf []byte, id int64) []byte {
	if len(buf) > 0 {
		buf = append(buf, ',')
	}
	return strconv.AppendInt(buf, id, 10)
}
