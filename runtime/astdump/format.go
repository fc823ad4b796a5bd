package astdump

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"
)

const (
	// Magic is the snapshot container magic number "BLOM" (4 bytes)
	Magic = "BLOM"

	// Version is the container version (uint16, little-endian)
	Version uint16 = 0x0001

	// MaxBodyLen bounds the CBOR body a reader will allocate for.
	MaxBodyLen = 64 * 1024 * 1024
)

// preambleLen is MAGIC(4) | VERSION(2) | FLAGS(2) | BODY_LEN(4)
const preambleLen = 12

// Format selects a snapshot encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
	FormatCBOR
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	case FormatCBOR:
		return "cbor"
	default:
		return "unknown"
	}
}

// ParseFormat maps a format name to a Format.
func ParseFormat(name string) (Format, error) {
	switch name {
	case "json":
		return FormatJSON, nil
	case "yaml":
		return FormatYAML, nil
	case "cbor":
		return FormatCBOR, nil
	default:
		return 0, fmt.Errorf("unknown snapshot format %q", name)
	}
}

var canonical cbor.EncMode

func init() {
	mode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cbor canonical mode: %v", err))
	}
	canonical = mode
}

// Encode writes snap to w in the given format.
func Encode(w io.Writer, snap *Snapshot, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(snap); err != nil {
			return err
		}
		return enc.Close()
	case FormatCBOR:
		return writeCBOR(w, snap)
	default:
		return fmt.Errorf("unknown snapshot format %d", format)
	}
}

// Decode reads a snapshot written by Encode.
func Decode(r io.Reader, format Format) (*Snapshot, error) {
	snap := &Snapshot{}
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(snap); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(snap); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	case FormatCBOR:
		return readCBOR(r)
	default:
		return nil, fmt.Errorf("unknown snapshot format %d", format)
	}
	return snap, nil
}

// Canonical returns the canonical CBOR body of snap, without the container
// preamble. Equal snapshots always produce equal bytes.
func Canonical(snap *Snapshot) ([]byte, error) {
	return canonical.Marshal(snap)
}

// writeCBOR writes MAGIC | VERSION | FLAGS | BODY_LEN | BODY.
func writeCBOR(w io.Writer, snap *Snapshot) error {
	body, err := Canonical(snap)
	if err != nil {
		return fmt.Errorf("encode cbor: %w", err)
	}
	if len(body) > MaxBodyLen {
		return fmt.Errorf("body length %d exceeds maximum %d", len(body), MaxBodyLen)
	}

	var preamble [preambleLen]byte
	copy(preamble[0:4], Magic)
	binary.LittleEndian.PutUint16(preamble[4:6], Version)
	binary.LittleEndian.PutUint16(preamble[6:8], 0) // no flags defined
	binary.LittleEndian.PutUint32(preamble[8:12], uint32(len(body)))

	if _, err := w.Write(preamble[:]); err != nil {
		return fmt.Errorf("write preamble: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

func readCBOR(r io.Reader) (*Snapshot, error) {
	var preamble [preambleLen]byte
	if _, err := io.ReadFull(r, preamble[:]); err != nil {
		return nil, fmt.Errorf("read preamble: %w", err)
	}

	magic := string(preamble[0:4])
	if magic != Magic {
		return nil, fmt.Errorf("invalid magic: got %q, expected %q", magic, Magic)
	}
	version := binary.LittleEndian.Uint16(preamble[4:6])
	if version != Version {
		return nil, fmt.Errorf("unsupported version: got 0x%04x, expected 0x%04x", version, Version)
	}
	if flags := binary.LittleEndian.Uint16(preamble[6:8]); flags != 0 {
		return nil, fmt.Errorf("unsupported flags 0x%04x", flags)
	}
	bodyLen := binary.LittleEndian.Uint32(preamble[8:12])
	if bodyLen > MaxBodyLen {
		return nil, fmt.Errorf("body length %d exceeds maximum %d", bodyLen, MaxBodyLen)
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	snap := &Snapshot{}
	if err := cbor.Unmarshal(body, snap); err != nil {
		return nil, fmt.Errorf("decode cbor: %w", err)
	}
	return snap, nil
}
