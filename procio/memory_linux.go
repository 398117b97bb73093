package procio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/targodan/go-errors"
)

const (
	fieldAddr = iota
	fieldPerm
	fieldOffset
	fieldDev
	fieldInode
	fieldPath
)

// memorySegmentFromLine parses one line of /proc/<pid>/maps.
func memorySegmentFromLine(line string) (*MemorySegmentInfo, error) {
	ret := &MemorySegmentInfo{
		State: StateCommit,
	}

	parts := strings.Fields(line)
	if len(parts) < fieldInode+1 {
		return nil, errors.Newf("maps line has too few fields: \"%s\"", line)
	}

	addrS := strings.Split(parts[fieldAddr], "-")
	if len(addrS) != 2 {
		return nil, errors.New("addr is not of format \"<hex>-<hex>\"")
	}
	addrStart, err := strconv.ParseUint(addrS[0], 16, 64)
	if err != nil {
		return nil, fmt.Errorf("addr is not of format \"<hex>-<hex>\", %w", err)
	}
	addrEnd, err := strconv.ParseUint(addrS[1], 16, 64)
	if err != nil {
		return nil, fmt.Errorf("addr is not of format \"<hex>-<hex>\", %w", err)
	}
	if addrEnd < addrStart {
		return nil, errors.Newf("segment end 0x%x lies before its start 0x%x", addrEnd, addrStart)
	}
	ret.BaseAddress = uintptr(addrStart)
	ret.ParentBaseAddress = uintptr(addrStart)
	ret.Size = uintptr(addrEnd - addrStart)

	if len(parts[fieldPerm]) != 4 {
		return nil, errors.New("permissions have invalid format")
	}
	perms, err := ParsePermissions(parts[fieldPerm][0:3])
	if err != nil {
		return nil, errors.Newf("permissions have invalid format, %w", err)
	}
	ret.AllocatedPermissions = perms
	ret.CurrentPermissions = perms

	switch parts[fieldPerm][3] {
	case 's':
		ret.Type = SegmentTypeMapped
	case 'p':
		ret.Type = SegmentTypePrivate
	default:
		return nil, errors.Newf("invalid memory type \"%c\"", parts[fieldPerm][3])
	}

	if len(parts) > fieldPath {
		ret.MappedFile = strings.Join(parts[fieldPath:], " ")
		if ret.Type == SegmentTypePrivate && strings.HasPrefix(ret.MappedFile, "/") {
			ret.Type = SegmentTypePrivateMapped
		}
	}

	return ret, nil
}
