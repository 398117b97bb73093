package pefile

import (
	"encoding/binary"

	"github.com/sirupsen/logrus"
)

const (
	// RTRCData is the resource type of raw application defined data.
	RTRCData uint32 = 10

	resourceDirectorySize = 16
	resourceEntrySize     = 8
	resourceDataEntrySize = 16

	subdirectoryFlag = 0x80000000

	levelType     = 0
	levelName     = 1
	levelLanguage = 2

	// MaxResourceEntries bounds the number of data entries returned by
	// a single walk.
	MaxResourceEntries = 4096
)

// ResourceData is a leaf of the resource tree.
type ResourceData struct {
	Type     uint32 `json:"type"`
	Name     uint32 `json:"name"`
	Language uint32 `json:"language"`
	// RVA of the resource data, translate with Image.RVAToOffset.
	RVA  uint32 `json:"rva"`
	Size uint32 `json:"size"`
}

type resourceDirectory struct {
	offset uint32
	level  int
	typ    uint32
	name   uint32
}

// WalkResources walks the resource directory tree in rsrc, starting at the
// root directory at offset root, and returns all data entries below root
// entries with the given type id. Out of bounds offsets, cycles and
// directories nested deeper than the language level are skipped.
func WalkResources(rsrc []byte, root uint32, typeID uint32) []*ResourceData {
	r := reader{data: rsrc}
	results := make([]*ResourceData, 0)
	visited := make(map[uint32]bool)
	stack := []resourceDirectory{{offset: root, level: levelType}}

	for len(stack) > 0 && len(results) < MaxResourceEntries {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[dir.offset] {
			continue
		}
		visited[dir.offset] = true

		named, ok1 := r.u16(uint64(dir.offset) + 12)
		ids, ok2 := r.u16(uint64(dir.offset) + 14)
		if !ok1 || !ok2 {
			logrus.WithField("offset", dir.offset).Debug("Resource directory out of bounds.")
			continue
		}

		subdirs := make([]resourceDirectory, 0)
		count := uint64(named) + uint64(ids)
		for i := uint64(0); i < count && len(results) < MaxResourceEntries; i++ {
			entry := uint64(dir.offset) + resourceDirectorySize + i*resourceEntrySize
			id, ok1 := r.u32(entry)
			target, ok2 := r.u32(entry + 4)
			if !ok1 || !ok2 {
				break
			}

			typ, name, lang := dir.typ, dir.name, uint32(0)
			switch dir.level {
			case levelType:
				if id != typeID {
					continue
				}
				typ = id
			case levelName:
				name = id
			default:
				lang = id
			}

			if target&subdirectoryFlag != 0 {
				if dir.level >= levelLanguage {
					continue
				}
				subdirs = append(subdirs, resourceDirectory{
					offset: target &^ subdirectoryFlag,
					level:  dir.level + 1,
					typ:    typ,
					name:   name,
				})
				continue
			}

			rec, ok := r.bytes(uint64(target), resourceDataEntrySize)
			if !ok {
				logrus.WithField("offset", target).Debug("Resource data entry out of bounds.")
				continue
			}
			results = append(results, &ResourceData{
				Type:     typ,
				Name:     name,
				Language: lang,
				RVA:      binary.LittleEndian.Uint32(rec),
				Size:     binary.LittleEndian.Uint32(rec[4:]),
			})
		}

		// Reverse push keeps the walk in directory order.
		for i := len(subdirs) - 1; i >= 0; i-- {
			stack = append(stack, subdirs[i])
		}
	}
	return results
}
