package pefile

import (
	"math"

	"github.com/fkie-cad/ahkdump/arch"
	"github.com/saferwall/pe"
	"github.com/sirupsen/logrus"
	"github.com/targodan/go-errors"
)

// SectionInfo is the advisory view of a section.
type SectionInfo struct {
	Name             string  `json:"name"`
	VirtualAddress   uint32  `json:"virtualAddress"`
	VirtualSize      uint32  `json:"virtualSize"`
	PointerToRawData uint32  `json:"pointerToRawData"`
	SizeOfRawData    uint32  `json:"sizeOfRawData"`
	Characteristics  uint32  `json:"characteristics"`
	Entropy          float64 `json:"entropy"`
}

// Analysis is an advisory summary of a PE file. It never influences
// extraction.
type Analysis struct {
	Path              string         `json:"path"`
	FileSize          int64          `json:"fileSize"`
	Arch              arch.T         `json:"-"`
	Bitness           arch.Bitness   `json:"bitness"`
	EntryPoint        uint32         `json:"entryPoint"`
	ImageBase         uint64         `json:"imageBase"`
	Sections          []*SectionInfo `json:"sections"`
	OverlaySize       int64          `json:"overlaySize"`
	Packer            PackerGuess    `json:"packer"`
	Compiler          CompilerType   `json:"compiler"`
	CompilerVersion   string         `json:"compilerVersion,omitempty"`
	IsAutoHotkey      bool           `json:"isAutoHotkey"`
	AutoHotkeyVersion string         `json:"autoHotkeyVersion,omitempty"`
	RCDataResources   int            `json:"rcdataResources"`
}

// IsPacked reports whether any packer was detected.
func (a *Analysis) IsPacked() bool {
	return a.Packer.Packer != PackerNone
}

// HighEntropySections returns the names of all sections with an entropy
// typical for compressed or encrypted data.
func (a *Analysis) HighEntropySections() []string {
	names := make([]string, 0)
	for _, s := range a.Sections {
		if s.Entropy > highEntropy {
			names = append(names, s.Name)
		}
	}
	return names
}

// Analyze inspects the PE file at path. Headers and section entropy are
// taken from saferwall/pe; if it rejects the file, the own header parser
// is used instead.
func Analyze(path string) (*Analysis, error) {
	img, err := Open(path)
	if err != nil {
		return nil, errors.Errorf("could not parse PE file, reason: %w", err)
	}
	defer img.Close()

	data := img.Bytes()
	a := &Analysis{
		Path:            path,
		FileSize:        int64(len(data)),
		Arch:            arch.FromPEMachine(img.Machine),
		RCDataResources: len(img.ResourcesOfType(RTRCData)),
	}

	err = a.readHeaders(path)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"path":          path,
			logrus.ErrorKey: err,
		}).Debug("Falling back to the builtin PE parser.")
		a.readHeadersFromImage(img)
	}
	a.Bitness = a.Arch.Bitness()
	if a.Bitness == arch.BitnessInvalid && img.Is64 {
		a.Bitness = arch.Bitness64Bit
	} else if a.Bitness == arch.BitnessInvalid {
		a.Bitness = arch.Bitness32Bit
	}

	a.OverlaySize = overlaySize(int64(len(data)), a.Sections)
	a.Packer = DetectPacker(data, a.Sections)
	a.Compiler, a.CompilerVersion = DetectCompiler(data)
	a.IsAutoHotkey, a.AutoHotkeyVersion = AutoHotkeyVersion(data)
	return a, nil
}

func (a *Analysis) readHeaders(path string) error {
	f, err := pe.New(path, &pe.Options{})
	if err != nil {
		return err
	}
	defer f.Close()

	err = f.Parse()
	if err != nil {
		return err
	}

	a.Arch = arch.FromPEMachine(uint16(f.NtHeader.FileHeader.Machine))
	switch oh := f.NtHeader.OptionalHeader.(type) {
	case pe.ImageOptionalHeader32:
		a.EntryPoint = oh.AddressOfEntryPoint
		a.ImageBase = uint64(oh.ImageBase)
	case pe.ImageOptionalHeader64:
		a.EntryPoint = oh.AddressOfEntryPoint
		a.ImageBase = oh.ImageBase
	}

	a.Sections = make([]*SectionInfo, 0, len(f.Sections))
	for i := range f.Sections {
		s := &f.Sections[i]
		a.Sections = append(a.Sections, &SectionInfo{
			Name:             s.NameString(),
			VirtualAddress:   s.Header.VirtualAddress,
			VirtualSize:      s.Header.VirtualSize,
			PointerToRawData: s.Header.PointerToRawData,
			SizeOfRawData:    s.Header.SizeOfRawData,
			Characteristics:  s.Header.Characteristics,
			Entropy:          s.CalculateEntropy(f),
		})
	}
	return nil
}

func (a *Analysis) readHeadersFromImage(img *Image) {
	data := img.Bytes()
	a.Sections = make([]*SectionInfo, 0, len(img.Sections))
	for _, s := range img.Sections {
		var raw []byte
		start := uint64(s.PointerToRawData)
		if start < uint64(len(data)) {
			end := start + uint64(s.SizeOfRawData)
			if end > uint64(len(data)) {
				end = uint64(len(data))
			}
			raw = data[start:end]
		}
		a.Sections = append(a.Sections, &SectionInfo{
			Name:             s.Name,
			VirtualAddress:   s.VirtualAddress,
			VirtualSize:      s.VirtualSize,
			PointerToRawData: s.PointerToRawData,
			SizeOfRawData:    s.SizeOfRawData,
			Characteristics:  s.Characteristics,
			Entropy:          Entropy(raw),
		})
	}
}

// Entropy returns the Shannon entropy of data in bits per byte.
func Entropy(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}
	var freq [256]int
	for _, b := range data {
		freq[b]++
	}
	entropy := 0.0
	n := float64(len(data))
	for _, f := range freq {
		if f == 0 {
			continue
		}
		p := float64(f) / n
		entropy -= p * math.Log2(p)
	}
	return entropy
}

func overlaySize(fileSize int64, sections []*SectionInfo) int64 {
	var end int64
	for _, s := range sections {
		e := int64(s.PointerToRawData) + int64(s.SizeOfRawData)
		if e > end {
			end = e
		}
	}
	if len(sections) == 0 || end >= fileSize {
		return 0
	}
	return fileSize - end
}
