package arch

import "fmt"

type Bitness int

const (
	BitnessInvalid Bitness = 0
	Bitness32Bit   Bitness = 32
	Bitness64Bit   Bitness = 64
)

var bitnessShortNames = map[Bitness]string{
	BitnessInvalid: "??",
	Bitness64Bit:   "64",
	Bitness32Bit:   "32",
}

func (b Bitness) Short() string {
	return bitnessShortNames[b]
}

func (b Bitness) String() string {
	switch b {
	case Bitness32Bit:
		return "32Bit"
	case Bitness64Bit:
		return "64Bit"
	case BitnessInvalid:
		return "Invalid"
	}
	return fmt.Sprintf("Bitness(%d)", int(b))
}

func (b Bitness) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *Bitness) UnmarshalText(text []byte) error {
	for bitness := range bitnessShortNames {
		if bitness.String() == string(text) {
			*b = bitness
			return nil
		}
	}
	return fmt.Errorf("unknown bitness \"%s\"", string(text))
}
