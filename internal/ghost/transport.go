package ghost

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Records on the wire are length-prefixed (4 bytes, big-endian). During the
// handshake a record is a cleartext frame; afterwards it is a sealed frame.
// The cap leaves headroom over the block size limit so a full block plus
// framing always fits.
const MaxRecordSize = 16 * 1024 * 1024

// WriteRecord writes one length-prefixed record.
func WriteRecord(w io.Writer, record []byte) error {
	if len(record) > MaxRecordSize {
		return fmt.Errorf("record of %d bytes exceeds cap", len(record))
	}
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(record)))
	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	_, err := w.Write(record)
	return err
}

// ReadRecord reads one length-prefixed record. The reader pulls exactly one
// record per call, so backpressure stays with the caller.
func ReadRecord(r io.Reader) ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(prefix[:])
	if size > MaxRecordSize {
		return nil, fmt.Errorf("record of %d bytes exceeds cap", size)
	}
	record := make([]byte, size)
	if _, err := io.ReadFull(r, record); err != nil {
		return nil, err
	}
	return record, nil
}
