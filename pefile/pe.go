// Package pefile parses the parts of PE executables needed to recover
// embedded scripts: headers, the section table and the resource
// directory. All reads are bounds checked; malformed input yields errors
// or partial results, never panics.
package pefile

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/targodan/go-errors"
)

// ErrNotPE is returned if the input lacks the MZ or PE signature.
var ErrNotPE = errors.New("not a PE file")

// ErrTruncated is returned if a header does not fit into the input.
var ErrTruncated = errors.New("PE file is truncated")

const (
	dosHeaderSize     = 64
	peOffsetField     = 0x3C
	coffHeaderSize    = 20
	sectionHeaderSize = 40

	magicPE32     = 0x10b
	magicPE32Plus = 0x20b

	dataDirectoryResource = 2
)

var (
	dosSignature = []byte("MZ")
	peSignature  = []byte("PE\x00\x00")
)

// SectionHeader is one entry of the section table.
type SectionHeader struct {
	Name             string `json:"name"`
	VirtualSize      uint32 `json:"virtualSize"`
	VirtualAddress   uint32 `json:"virtualAddress"`
	SizeOfRawData    uint32 `json:"sizeOfRawData"`
	PointerToRawData uint32 `json:"pointerToRawData"`
	Characteristics  uint32 `json:"characteristics"`
}

// VirtualEnd returns the first RVA behind the section. If the virtual size
// is zero, the raw size is used instead.
func (s *SectionHeader) VirtualEnd() uint64 {
	size := s.VirtualSize
	if size == 0 {
		size = s.SizeOfRawData
	}
	return uint64(s.VirtualAddress) + uint64(size)
}

// ContainsRVA reports whether rva lies within the virtual range of s.
func (s *SectionHeader) ContainsRVA(rva uint32) bool {
	return rva >= s.VirtualAddress && uint64(rva) < s.VirtualEnd()
}

// DataDirectory is an entry of the optional header's data directory.
type DataDirectory struct {
	VirtualAddress uint32
	Size           uint32
}

// Image is a parsed PE file. It references the input buffer, which must
// not be modified while the Image is in use.
type Image struct {
	data []byte

	PEOffset  uint32
	Machine   uint16
	Is64      bool
	Sections  []*SectionHeader
	Resources DataDirectory
	// ResourceSection is nil if the file has no resource section.
	ResourceSection *SectionHeader

	closer io.Closer
}

type reader struct {
	data []byte
}

func (r reader) u16(off uint64) (uint16, bool) {
	if off+2 > uint64(len(r.data)) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(r.data[off:]), true
}

func (r reader) u32(off uint64) (uint32, bool) {
	if off+4 > uint64(len(r.data)) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(r.data[off:]), true
}

func (r reader) bytes(off, n uint64) ([]byte, bool) {
	if off+n > uint64(len(r.data)) {
		return nil, false
	}
	return r.data[off : off+n], true
}

// Parse parses the headers and section table of a PE file. Section headers
// which do not fit into data are ignored.
func Parse(data []byte) (*Image, error) {
	r := reader{data: data}
	if len(data) < dosHeaderSize || !bytes.Equal(data[:2], dosSignature) {
		return nil, ErrNotPE
	}

	peOffset, _ := r.u32(peOffsetField)
	sig, ok := r.bytes(uint64(peOffset), 4)
	if !ok {
		return nil, ErrTruncated
	}
	if !bytes.Equal(sig, peSignature) {
		return nil, ErrNotPE
	}

	coff := uint64(peOffset) + 4
	if _, ok := r.bytes(coff, coffHeaderSize); !ok {
		return nil, ErrTruncated
	}
	machine, _ := r.u16(coff)
	numSections, _ := r.u16(coff + 2)
	optionalSize, _ := r.u16(coff + 16)

	img := &Image{
		data:     data,
		PEOffset: peOffset,
		Machine:  machine,
		Sections: make([]*SectionHeader, 0, numSections),
	}

	optional := coff + coffHeaderSize
	img.parseOptionalHeader(r, optional, uint64(optionalSize))

	sectionTable := optional + uint64(optionalSize)
	for i := uint64(0); i < uint64(numSections); i++ {
		raw, ok := r.bytes(sectionTable+i*sectionHeaderSize, sectionHeaderSize)
		if !ok {
			break
		}
		img.Sections = append(img.Sections, parseSectionHeader(raw))
	}

	img.ResourceSection = img.findResourceSection()
	return img, nil
}

func (img *Image) parseOptionalHeader(r reader, offset, size uint64) {
	magic, ok := r.u16(offset)
	if !ok || size < 2 {
		return
	}

	var dirOffset uint64
	switch magic {
	case magicPE32:
		dirOffset = 96
	case magicPE32Plus:
		img.Is64 = true
		dirOffset = 112
	default:
		return
	}

	entry := dirOffset + dataDirectoryResource*8
	if entry+8 > size {
		return
	}
	va, ok1 := r.u32(offset + entry)
	sz, ok2 := r.u32(offset + entry + 4)
	if ok1 && ok2 {
		img.Resources = DataDirectory{VirtualAddress: va, Size: sz}
	}
}

func parseSectionHeader(raw []byte) *SectionHeader {
	name := raw[:8]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return &SectionHeader{
		Name:             string(name),
		VirtualSize:      binary.LittleEndian.Uint32(raw[8:]),
		VirtualAddress:   binary.LittleEndian.Uint32(raw[12:]),
		SizeOfRawData:    binary.LittleEndian.Uint32(raw[16:]),
		PointerToRawData: binary.LittleEndian.Uint32(raw[20:]),
		Characteristics:  binary.LittleEndian.Uint32(raw[36:]),
	}
}

func (img *Image) findResourceSection() *SectionHeader {
	for _, s := range img.Sections {
		if s.Name == ".rsrc" {
			return s
		}
	}
	if img.Resources.VirtualAddress != 0 {
		return img.SectionForRVA(img.Resources.VirtualAddress)
	}
	return nil
}

// SectionForRVA returns the section backing rva, or nil.
func (img *Image) SectionForRVA(rva uint32) *SectionHeader {
	for _, s := range img.Sections {
		if s.ContainsRVA(rva) {
			return s
		}
	}
	return nil
}

// RVAToOffset translates a relative virtual address into a file offset.
// The second return value is false if no section backs rva or the offset
// does not fit a 32 bit file offset.
func (img *Image) RVAToOffset(rva uint32) (uint32, bool) {
	s := img.SectionForRVA(rva)
	if s == nil {
		return 0, false
	}
	off := uint64(s.PointerToRawData) + uint64(rva-s.VirtualAddress)
	if off > math.MaxUint32 {
		return 0, false
	}
	return uint32(off), true
}

// ReadRVA returns size bytes of the file starting at rva. The second return
// value is false if rva can not be translated or the range exceeds the
// file.
func (img *Image) ReadRVA(rva, size uint32) ([]byte, bool) {
	off, ok := img.RVAToOffset(rva)
	if !ok {
		return nil, false
	}
	return reader{data: img.data}.bytes(uint64(off), uint64(size))
}

// ResourceSectionData returns the raw bytes of the resource section,
// clipped to the end of the file, and the offset of the root resource
// directory within them.
func (img *Image) ResourceSectionData() ([]byte, uint32) {
	s := img.ResourceSection
	if s == nil || uint64(s.PointerToRawData) >= uint64(len(img.data)) {
		return nil, 0
	}
	end := uint64(s.PointerToRawData) + uint64(s.SizeOfRawData)
	if end > uint64(len(img.data)) {
		end = uint64(len(img.data))
	}

	var root uint32
	if dir := img.Resources.VirtualAddress; dir != 0 && s.ContainsRVA(dir) {
		root = dir - s.VirtualAddress
	}
	return img.data[s.PointerToRawData:end], root
}

// ResourcesOfType returns all data entries of the given resource type.
func (img *Image) ResourcesOfType(typeID uint32) []*ResourceData {
	rsrc, root := img.ResourceSectionData()
	if rsrc == nil {
		return nil
	}
	return WalkResources(rsrc, root, typeID)
}

// Bytes returns the complete input.
func (img *Image) Bytes() []byte {
	return img.data
}

// Close releases the input buffer if it is memory mapped.
func (img *Image) Close() error {
	if img.closer == nil {
		return nil
	}
	err := img.closer.Close()
	img.closer = nil
	img.data = nil
	return err
}
