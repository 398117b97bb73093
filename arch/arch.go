package arch

import "runtime"

type T int

const (
	Invalid T = iota
	AMD64
	I386
	ARM64
)

var bitness = map[T]Bitness{
	Invalid: BitnessInvalid,
	AMD64:   Bitness64Bit,
	I386:    Bitness32Bit,
	ARM64:   Bitness64Bit,
}

var names = map[T]string{
	Invalid: "invalid",
	AMD64:   "amd64",
	I386:    "i386",
	ARM64:   "arm64",
}

func (t T) Bitness() Bitness {
	return bitness[t]
}

func (t T) String() string {
	return names[t]
}

// FromPEMachine maps the machine field of a PE COFF header to T.
func FromPEMachine(machine uint16) T {
	switch machine {
	case 0x8664:
		return AMD64
	case 0x14c:
		return I386
	case 0xaa64:
		return ARM64
	}
	return Invalid
}

// Native returns the architecture this binary was built for.
func Native() T {
	switch runtime.GOARCH {
	case "amd64":
		return AMD64
	case "386":
		return I386
	case "arm64":
		return ARM64
	}
	return Invalid
}
