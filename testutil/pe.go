// Package testutil builds synthetic inputs for tests.
package testutil

import (
	"encoding/binary"
)

const (
	peOffset          = 0x40
	optionalHeaderLen = 224
	sectionHeaderLen  = 40
	fileAlignment     = 0x200
	firstRawOffset    = 0x400
)

// Section describes a section of a synthetic PE file.
type Section struct {
	Name            string
	VirtualAddress  uint32
	VirtualSize     uint32
	Characteristics uint32
	Data            []byte
}

// ResourceEntry is one leaf of a synthetic resource tree.
type ResourceEntry struct {
	Type     uint32
	Name     uint32
	Language uint32
	Data     []byte
}

func align(n, a uint32) uint32 {
	return (n + a - 1) / a * a
}

// BuildPE returns a minimal PE32 file containing the given sections. Raw
// data is laid out file aligned starting at offset 0x400. If a section is
// named ".rsrc", the resource data directory points at it.
func BuildPE(sections ...Section) []byte {
	headerEnd := uint32(peOffset + 4 + 20 + optionalHeaderLen + sectionHeaderLen*len(sections))
	rawOffset := align(headerEnd, fileAlignment)
	if rawOffset < firstRawOffset {
		rawOffset = firstRawOffset
	}

	rawOffsets := make([]uint32, len(sections))
	size := rawOffset
	for i, s := range sections {
		rawOffsets[i] = size
		size += align(uint32(len(s.Data)), fileAlignment)
	}

	buf := make([]byte, size)
	le := binary.LittleEndian

	copy(buf, "MZ")
	le.PutUint32(buf[0x3C:], peOffset)
	copy(buf[peOffset:], "PE\x00\x00")

	coff := peOffset + 4
	le.PutUint16(buf[coff:], 0x14c)
	le.PutUint16(buf[coff+2:], uint16(len(sections)))
	le.PutUint16(buf[coff+16:], optionalHeaderLen)
	le.PutUint16(buf[coff+18:], 0x0102)

	opt := coff + 20
	le.PutUint16(buf[opt:], 0x10b)
	le.PutUint32(buf[opt+28:], 0x400000)
	le.PutUint32(buf[opt+32:], 0x1000)
	le.PutUint32(buf[opt+36:], fileAlignment)
	le.PutUint32(buf[opt+92:], 16)

	table := opt + optionalHeaderLen
	for i, s := range sections {
		h := buf[table+i*sectionHeaderLen:]
		copy(h[:8], s.Name)
		virtualSize := s.VirtualSize
		if virtualSize == 0 {
			virtualSize = uint32(len(s.Data))
		}
		le.PutUint32(h[8:], virtualSize)
		le.PutUint32(h[12:], s.VirtualAddress)
		le.PutUint32(h[16:], align(uint32(len(s.Data)), fileAlignment))
		le.PutUint32(h[20:], rawOffsets[i])
		le.PutUint32(h[36:], s.Characteristics)
		copy(buf[rawOffsets[i]:], s.Data)

		if s.Name == ".rsrc" {
			le.PutUint32(buf[opt+96+2*8:], s.VirtualAddress)
			le.PutUint32(buf[opt+96+2*8+4:], virtualSize)
		}
	}
	return buf
}

// BuildResourceTree returns the content of a resource section mapped at
// sectionRVA. Every entry gets its own type, name and language directory.
func BuildResourceTree(sectionRVA uint32, entries ...ResourceEntry) []byte {
	n := uint32(len(entries))
	off := 16 + 8*n
	nameDirs := make([]uint32, n)
	langDirs := make([]uint32, n)
	dataEntries := make([]uint32, n)
	for i := range entries {
		nameDirs[i] = off
		off += 24
		langDirs[i] = off
		off += 24
		dataEntries[i] = off
		off += 16
	}
	dataOffsets := make([]uint32, n)
	for i, e := range entries {
		dataOffsets[i] = off
		off += align(uint32(len(e.Data)), 4)
	}

	buf := make([]byte, off)
	le := binary.LittleEndian

	le.PutUint16(buf[14:], uint16(n))
	for i, e := range entries {
		root := 16 + 8*uint32(i)
		le.PutUint32(buf[root:], e.Type)
		le.PutUint32(buf[root+4:], nameDirs[i]|0x80000000)

		le.PutUint16(buf[nameDirs[i]+14:], 1)
		le.PutUint32(buf[nameDirs[i]+16:], e.Name)
		le.PutUint32(buf[nameDirs[i]+20:], langDirs[i]|0x80000000)

		le.PutUint16(buf[langDirs[i]+14:], 1)
		le.PutUint32(buf[langDirs[i]+16:], e.Language)
		le.PutUint32(buf[langDirs[i]+20:], dataEntries[i])

		le.PutUint32(buf[dataEntries[i]:], sectionRVA+dataOffsets[i])
		le.PutUint32(buf[dataEntries[i]+4:], uint32(len(e.Data)))

		copy(buf[dataOffsets[i]:], e.Data)
	}
	return buf
}

// EncodeUTF16LE encodes an ASCII string as UTF-16 little endian.
func EncodeUTF16LE(s string) []byte {
	out := make([]byte, 0, 2*len(s))
	for _, r := range s {
		out = append(out, byte(r), byte(r>>8))
	}
	return out
}
