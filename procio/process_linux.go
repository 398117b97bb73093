package procio

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/targodan/go-errors"
)

// ExecutableSuffix is the file name suffix of executables on this platform.
const ExecutableSuffix = ""

// procPath is replaced by a fake /proc tree in tests.
var procPath = "/proc"

type processLinux struct {
	pid     int
	memfile *os.File
}

func open(pid int) (Process, error) {
	_, err := os.Stat(fmt.Sprintf("%s/%d", procPath, pid))
	if os.IsNotExist(err) {
		return nil, ErrProcessGone
	}
	if os.IsPermission(err) {
		return nil, fmt.Errorf("insufficient permissions")
	}
	if err != nil {
		return nil, fmt.Errorf("unexpected error: %w", err)
	}

	memfile, err := os.OpenFile(fmt.Sprintf("%s/%d/mem", procPath, pid), os.O_RDONLY, 0400)
	if err != nil {
		return nil, fmt.Errorf("could not open process memory for reading, reason: %w", err)
	}
	return &processLinux{pid: pid, memfile: memfile}, nil
}

// procStat contains the fields of /proc/<pid>/stat we care about.
type procStat struct {
	pid   int
	comm  string
	state byte
	ppid  int
}

func parseStat(content string) (*procStat, error) {
	// comm is enclosed in parentheses and may itself contain spaces
	// and parentheses, so split at the last closing one.
	start := strings.IndexByte(content, '(')
	closing := strings.LastIndexByte(content, ')')
	if start < 0 || closing < start {
		return nil, errors.New("stat has invalid format")
	}

	pid, err := strconv.Atoi(strings.TrimSpace(content[:start]))
	if err != nil {
		return nil, errors.Newf("stat has invalid pid, reason: %w", err)
	}
	rest := strings.Fields(content[closing+1:])
	if len(rest) < 2 || len(rest[0]) != 1 {
		return nil, errors.New("stat has too few fields")
	}
	ppid, err := strconv.Atoi(rest[1])
	if err != nil {
		return nil, errors.Newf("stat has invalid ppid, reason: %w", err)
	}
	return &procStat{
		pid:   pid,
		comm:  content[start+1 : closing],
		state: rest[0][0],
		ppid:  ppid,
	}, nil
}

func readStat(pid int) (*procStat, error) {
	content, err := os.ReadFile(fmt.Sprintf("%s/%d/stat", procPath, pid))
	if err != nil {
		return nil, err
	}
	return parseStat(string(content))
}

func processExists(pid int) bool {
	stat, err := readStat(pid)
	if err != nil {
		return false
	}
	// Zombies and dead processes have no memory left to read.
	return stat.state != 'Z' && stat.state != 'X'
}

func listProcesses() ([]*ProcessEntry, error) {
	dir, err := os.ReadDir(procPath)
	if err != nil {
		return nil, err
	}

	procs := make([]*ProcessEntry, 0, len(dir))
	for _, entry := range dir {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			// This is fine, e.g. /proc/self
			continue
		}
		stat, err := readStat(pid)
		if err != nil {
			// Process exited in the meantime.
			continue
		}
		procs = append(procs, &ProcessEntry{
			PID:       stat.pid,
			ParentPID: stat.ppid,
			Name:      stat.comm,
		})
	}
	return procs, nil
}

func terminate(pid int) error {
	err := syscall.Kill(pid, syscall.SIGKILL)
	if err == syscall.ESRCH {
		return ErrProcessGone
	}
	return err
}

func (p *processLinux) PID() int {
	return p.pid
}

func (p *processLinux) String() string {
	return FormatPID(p.pid)
}

func (p *processLinux) Handle() interface{} {
	return p.pid
}

func (p *processLinux) Close() error {
	return p.memfile.Close()
}

func (p *processLinux) ReadMemory(address uintptr, buf []byte) (int, error) {
	fd := int(p.memfile.Fd())
	total := 0
	for total < len(buf) {
		n, err := syscall.Pread(fd, buf[total:], int64(address)+int64(total))

		logrus.WithFields(logrus.Fields{
			"pid":     p.pid,
			"address": FormatAddress(address + uintptr(total)),
		}).Tracef("pread(%d, len == %d) -> %d, %v", fd, len(buf)-total, n, err)

		if n > 0 {
			total += n
		}
		if err != nil {
			return total, err
		}
		if n <= 0 {
			break
		}
	}
	return total, nil
}

func (p *processLinux) MemorySegments() (SegmentIterator, error) {
	maps, err := os.OpenFile(fmt.Sprintf("%s/%d/maps", procPath, p.pid), os.O_RDONLY, 0444)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrProcessGone
		}
		return nil, err
	}
	return newMapsIterator(maps), nil
}

type mapsIterator struct {
	rdr     io.ReadCloser
	scanner *bufio.Scanner
	last    uintptr
	started bool
}

func newMapsIterator(rdr io.ReadCloser) *mapsIterator {
	return &mapsIterator{
		rdr:     rdr,
		scanner: bufio.NewScanner(rdr),
	}
}

func (it *mapsIterator) Next() (*MemorySegmentInfo, error) {
	for it.scanner.Scan() {
		line := it.scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		seg, err := memorySegmentFromLine(line)
		if err != nil {
			logrus.WithField("line", line).WithError(err).Debug("Skipping unparsable maps line.")
			continue
		}
		if it.started && seg.BaseAddress <= it.last {
			continue
		}
		it.started = true
		it.last = seg.BaseAddress
		return seg, nil
	}
	if err := it.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (it *mapsIterator) Close() error {
	return it.rdr.Close()
}
