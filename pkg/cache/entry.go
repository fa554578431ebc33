package cache

import (
	"encoding/binary"
	"time"
)

// entry layout: 8-byte big-endian expiry in unix nanoseconds (0 = never)
// followed by the value.
const headerSize = 8

func encodeEntry(value []byte, ttl time.Duration, now time.Time) []byte {
	buf := make([]byte, headerSize+len(value))
	var expires int64
	if ttl > 0 {
		expires = now.Add(ttl).UnixNano()
	}
	binary.BigEndian.PutUint64(buf[:headerSize], uint64(expires))
	copy(buf[headerSize:], value)
	return buf
}

func decodeEntry(data []byte) (value []byte, expires time.Time, err error) {
	if len(data) < headerSize {
		return nil, time.Time{}, ErrCorruptEntry
	}
	nanos := int64(binary.BigEndian.Uint64(data[:headerSize]))
	if nanos != 0 {
		expires = time.Unix(0, nanos)
	}
	return data[headerSize:], expires, nil
}

func expired(expires, now time.Time) bool {
	return !expires.IsZero() && !now.Before(expires)
}
