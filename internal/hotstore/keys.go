package hotstore

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Sample key layout: 'd' + site hash (8 bytes BE) + point hash (8 bytes BE) +
// timestamp ms (8 bytes BE). Big-endian hashes give contiguous per-site and
// per-point key ranges, and big-endian timestamps keep each range in time
// order for cheap range scans.
const sampleKeySize = 1 + 8 + 8 + 8

func hashSite(siteID string) uint64 {
	return xxhash.Sum64String(siteID)
}

func sampleKey(siteHash, pointHash uint64, tsMillis int64) []byte {
	key := make([]byte, sampleKeySize)
	key[0] = 'd'
	binary.BigEndian.PutUint64(key[1:9], siteHash)
	binary.BigEndian.PutUint64(key[9:17], pointHash)
	binary.BigEndian.PutUint64(key[17:25], uint64(tsMillis))
	return key
}

func sitePrefix(siteHash uint64) []byte {
	key := make([]byte, 9)
	key[0] = 'd'
	binary.BigEndian.PutUint64(key[1:9], siteHash)
	return key
}

func pointPrefix(siteHash, pointHash uint64) []byte {
	key := make([]byte, 17)
	key[0] = 'd'
	binary.BigEndian.PutUint64(key[1:9], siteHash)
	binary.BigEndian.PutUint64(key[9:17], pointHash)
	return key
}

func parseSampleKey(key []byte) (pointHash uint64, tsMillis int64, ok bool) {
	if len(key) != sampleKeySize || key[0] != 'd' {
		return 0, 0, false
	}
	pointHash = binary.BigEndian.Uint64(key[9:17])
	tsMillis = int64(binary.BigEndian.Uint64(key[17:25]))
	return pointHash, tsMillis, true
}
