package vector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
)

// File layout, little-endian:
//
//	magic "DFVX" | version u16 | metric u8 | dimensions u32 | count u32
//	count x ( idLen u32 | id | dimensions x f32 | payloadLen u32 | payload JSON )
const (
	fileMagic   = "DFVX"
	fileVersion = uint16(1)
	// maxFieldLen bounds id and payload lengths read from disk.
	maxFieldLen = 64 << 20
)

var errCorrupt = errors.New("corrupt index file")

type fileHeader struct {
	Magic      [4]byte
	Version    uint16
	Metric     uint8
	Dimensions uint32
	Count      uint32
}

func encodeRecords(w io.Writer, metric Metric, dimensions int, records []Record) error {
	bw := bufio.NewWriter(w)
	hdr := fileHeader{
		Version:    fileVersion,
		Metric:     uint8(metric),
		Dimensions: uint32(dimensions),
		Count:      uint32(len(records)),
	}
	copy(hdr.Magic[:], fileMagic)
	if err := binary.Write(bw, binary.LittleEndian, hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range records {
		if err := writeField(bw, []byte(rec.ID)); err != nil {
			return fmt.Errorf("write id: %w", err)
		}
		if _, err := bw.Write(float32SliceToBytes(rec.Vector)); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
		payload, err := json.Marshal(rec.Payload)
		if err != nil {
			return fmt.Errorf("encode payload of %s: %w", rec.ID, err)
		}
		if err := writeField(bw, payload); err != nil {
			return fmt.Errorf("write payload: %w", err)
		}
	}
	return bw.Flush()
}

// decodeRecords reads a file written by encodeRecords. Later duplicates of an ID replace
// earlier ones in place.
func decodeRecords(r io.Reader, metric Metric, dimensions int) ([]Record, error) {
	br := bufio.NewReader(r)
	var hdr fileHeader
	if err := binary.Read(br, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: read header: %v", errCorrupt, err)
	}
	if string(hdr.Magic[:]) != fileMagic {
		return nil, fmt.Errorf("%w: bad magic %q", errCorrupt, hdr.Magic[:])
	}
	if hdr.Version != fileVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", errCorrupt, hdr.Version)
	}
	if Metric(hdr.Metric) != metric {
		return nil, fmt.Errorf("metric mismatch: file has %s, index expects %s", Metric(hdr.Metric), metric)
	}
	if int(hdr.Dimensions) != dimensions {
		return nil, fmt.Errorf("dimension mismatch: file has %d, index expects %d", hdr.Dimensions, dimensions)
	}
	records := make([]Record, 0, min(int(hdr.Count), 1<<16))
	positions := make(map[string]int, cap(records))
	buf := make([]byte, dimensions*4)
	for i := uint32(0); i < hdr.Count; i++ {
		id, err := readField(br)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d id: %v", errCorrupt, i, err)
		}
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, fmt.Errorf("%w: record %d vector: %v", errCorrupt, i, err)
		}
		raw, err := readField(br)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d payload: %v", errCorrupt, i, err)
		}
		payload, err := decodePayload(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d payload: %v", errCorrupt, i, err)
		}
		rec := Record{ID: string(id), Vector: bytesToFloat32Slice(buf), Payload: payload}
		if pos, ok := positions[rec.ID]; ok {
			records[pos] = rec
			continue
		}
		positions[rec.ID] = len(records)
		records = append(records, rec)
	}
	return records, nil
}

func writeField(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readField(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	if n > maxFieldLen {
		return nil, fmt.Errorf("field length %d exceeds limit", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
