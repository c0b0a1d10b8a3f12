// Package archive implements the cold tier: a columnar daily segment format
// and the object store it lives in. One file holds one UTC day of samples for
// one site.
package archive

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/buildingvitals/vitalstore/internal/models"
	"github.com/golang/snappy"
)

// Segment file layout:
//
//	magic   [4]byte "VSG1"
//	rows    uint32 LE (total sample count, readable without decompression)
//	body    snappy-compressed point groups
//
// Body layout, per point group:
//
//	nameLen  uint32 LE
//	name     []byte
//	count    uint32 LE
//	baseTime int64 LE (epoch ms of first sample)
//	deltas   [count-1]uint32 LE (ms from previous sample)
//	values   [count]float64 LE
var segmentMagic = [4]byte{'V', 'S', 'G', '1'}

const segmentHeaderSize = 8

// EncodeSegment encodes one day of samples into the segment format. Samples
// may arrive in any order; they are grouped by point and delta-encoded in
// timestamp order.
func EncodeSegment(samples []models.Sample) ([]byte, error) {
	sorted := make([]models.Sample, len(samples))
	copy(sorted, samples)
	models.SortSamplesAscending(sorted)

	// Group by point, preserving first-seen order for determinism
	groups := make(map[string][]models.Sample)
	var order []string
	for _, s := range sorted {
		if _, seen := groups[s.PointName]; !seen {
			order = append(order, s.PointName)
		}
		groups[s.PointName] = append(groups[s.PointName], s)
	}

	var body []byte
	u32 := make([]byte, 4)
	u64 := make([]byte, 8)

	for _, name := range order {
		points := groups[name]

		nameBytes := []byte(name)
		binary.LittleEndian.PutUint32(u32, uint32(len(nameBytes)))
		body = append(body, u32...)
		body = append(body, nameBytes...)

		binary.LittleEndian.PutUint32(u32, uint32(len(points)))
		body = append(body, u32...)

		base := points[0].Timestamp
		binary.LittleEndian.PutUint64(u64, uint64(base))
		body = append(body, u64...)

		prev := base
		for _, p := range points[1:] {
			delta := p.Timestamp - prev
			if delta < 0 || delta > math.MaxUint32 {
				return nil, fmt.Errorf("timestamp delta %d out of range for point %s", delta, name)
			}
			binary.LittleEndian.PutUint32(u32, uint32(delta))
			body = append(body, u32...)
			prev = p.Timestamp
		}

		for _, p := range points {
			binary.LittleEndian.PutUint64(u64, math.Float64bits(p.Value))
			body = append(body, u64...)
		}
	}

	out := make([]byte, segmentHeaderSize, segmentHeaderSize+len(body)/2)
	copy(out, segmentMagic[:])
	binary.LittleEndian.PutUint32(out[4:], uint32(len(sorted)))
	out = append(out, snappy.Encode(nil, body)...)

	return out, nil
}

// SegmentRowCount reads the sample count from the header without decompressing
func SegmentRowCount(data []byte) (int64, error) {
	if len(data) < segmentHeaderSize {
		return 0, fmt.Errorf("segment too short: %d bytes", len(data))
	}
	if [4]byte(data[:4]) != segmentMagic {
		return 0, fmt.Errorf("bad segment magic %q", data[:4])
	}
	return int64(binary.LittleEndian.Uint32(data[4:])), nil
}

// DecodeSegment decodes a segment file back into samples for the given site.
// Returned samples are sorted ascending by timestamp.
func DecodeSegment(siteID string, data []byte) ([]models.Sample, error) {
	rows, err := SegmentRowCount(data)
	if err != nil {
		return nil, err
	}

	body, err := snappy.Decode(nil, data[segmentHeaderSize:])
	if err != nil {
		return nil, fmt.Errorf("snappy decompress failed: %w", err)
	}

	samples := make([]models.Sample, 0, rows)
	offset := 0

	for offset < len(body) {
		if offset+4 > len(body) {
			return nil, fmt.Errorf("truncated point group at offset %d", offset)
		}
		nameLen := int(binary.LittleEndian.Uint32(body[offset:]))
		offset += 4

		if offset+nameLen > len(body) {
			return nil, fmt.Errorf("invalid point name length %d", nameLen)
		}
		name := string(body[offset : offset+nameLen])
		offset += nameLen

		if offset+12 > len(body) {
			return nil, fmt.Errorf("truncated group header for point %s", name)
		}
		count := int(binary.LittleEndian.Uint32(body[offset:]))
		offset += 4
		base := int64(binary.LittleEndian.Uint64(body[offset:]))
		offset += 8

		if count == 0 {
			return nil, fmt.Errorf("empty group for point %s", name)
		}

		deltasSize := (count - 1) * 4
		valuesSize := count * 8
		if offset+deltasSize+valuesSize > len(body) {
			return nil, fmt.Errorf("truncated samples for point %s", name)
		}

		timestamps := make([]int64, count)
		timestamps[0] = base
		for i := 1; i < count; i++ {
			delta := binary.LittleEndian.Uint32(body[offset+(i-1)*4:])
			timestamps[i] = timestamps[i-1] + int64(delta)
		}
		offset += deltasSize

		for i := 0; i < count; i++ {
			value := math.Float64frombits(binary.LittleEndian.Uint64(body[offset+i*8:]))
			samples = append(samples, models.Sample{
				SiteID:    siteID,
				PointName: name,
				Timestamp: timestamps[i],
				Value:     value,
			})
		}
		offset += valuesSize
	}

	if int64(len(samples)) != rows {
		return nil, fmt.Errorf("row count mismatch: header says %d, body has %d", rows, len(samples))
	}

	models.SortSamplesAscending(samples)
	return samples, nil
}
