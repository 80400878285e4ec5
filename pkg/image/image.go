// Package image serializes mlbf programs to .bfc files.
//
// An image is the 4-byte magic "MLBF", a big-endian uint16 format version,
// and a canonical CBOR body holding the instruction stream and metadata.
// Canonical encoding makes equal programs encode to equal bytes, which the
// compile cache relies on.
package image

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/mlbf/pkg/bytecode"
)

// Magic identifies an mlbf image.
var Magic = [4]byte{'M', 'L', 'B', 'F'}

// Version is the current image format version.
const Version uint16 = 1

const headerSize = len(Magic) + 2

// Flags describe how the stored program was produced.
type Flags uint32

const (
	FlagOptimized Flags = 1 << iota // passes above level 0 ran
	FlagLinked                      // branch targets are valid
)

var (
	ErrInvalidMagic    = errors.New("invalid magic number: expected MLBF")
	ErrVersionMismatch = errors.New("image version mismatch")
	ErrCorruptHeader   = errors.New("corrupt image header")
	ErrCorruptData     = errors.New("corrupt image data")
)

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("image: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// Record is the wire form of one instruction.
type Record struct {
	_        struct{} `cbor:",toarray"`
	Opcode   uint8
	Argument int32
	Offset   int32
}

// Image is the decoded content of a .bfc file.
type Image struct {
	Version      uint16   `cbor:"-"`
	Flags        Flags    `cbor:"1,keyasint"`
	Level        int      `cbor:"2,keyasint"`
	SourceHash   string   `cbor:"3,keyasint,omitempty"`
	Instructions []Record `cbor:"4,keyasint"`
}

// Meta is the metadata stored alongside a program.
type Meta struct {
	Flags      Flags
	Level      int
	SourceHash string
}

// Encode serializes p with meta.
func Encode(p *bytecode.Program, meta Meta) ([]byte, error) {
	if p.Released() {
		return nil, bytecode.ErrReleased
	}

	img := Image{
		Flags:      meta.Flags,
		Level:      meta.Level,
		SourceHash: meta.SourceHash,
	}
	for _, ins := range p.Instructions() {
		img.Instructions = append(img.Instructions, Record{
			Opcode:   uint8(ins.Opcode),
			Argument: ins.Argument,
			Offset:   ins.Offset,
		})
	}

	body, err := encMode.Marshal(&img)
	if err != nil {
		return nil, fmt.Errorf("image: marshal: %w", err)
	}

	var buf bytes.Buffer
	buf.Grow(headerSize + len(body))
	buf.Write(Magic[:])
	_ = binary.Write(&buf, binary.BigEndian, Version)
	buf.Write(body)
	return buf.Bytes(), nil
}

// Decode parses an image and rebuilds its program through Append, so the
// program size ceiling applies to images as it does to the front-end.
func Decode(data []byte) (*bytecode.Program, *Image, error) {
	if len(data) < headerSize {
		return nil, nil, fmt.Errorf("%w: %d bytes", ErrCorruptHeader, len(data))
	}
	if !bytes.Equal(data[:len(Magic)], Magic[:]) {
		return nil, nil, fmt.Errorf("%w: got %q", ErrInvalidMagic, data[:len(Magic)])
	}
	version := binary.BigEndian.Uint16(data[len(Magic):headerSize])
	if version != Version {
		return nil, nil, fmt.Errorf("%w: expected %d, got %d", ErrVersionMismatch, Version, version)
	}

	var img Image
	if err := cbor.Unmarshal(data[headerSize:], &img); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrCorruptData, err)
	}
	img.Version = version

	p := bytecode.NewProgram()
	for i, r := range img.Instructions {
		op := bytecode.Opcode(r.Opcode)
		if !op.IsValid() {
			return nil, nil, fmt.Errorf("%w: opcode %d at %d", ErrCorruptData, r.Opcode, i)
		}
		if err := p.Append(bytecode.NewInstruction(op, r.Argument, r.Offset)); err != nil {
			return nil, nil, fmt.Errorf("image: instruction %d: %w", i, err)
		}
	}
	return p, &img, nil
}

// WriteFile encodes p and writes it to path.
func WriteFile(path string, p *bytecode.Program, meta Meta) error {
	data, err := Encode(p, meta)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadFile reads and decodes the image at path.
func ReadFile(path string) (*bytecode.Program, *Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return Decode(data)
}
