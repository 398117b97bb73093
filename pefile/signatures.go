package pefile

import (
	"bytes"
	"regexp"
	"strings"
)

// PackerType names a known executable packer.
type PackerType string

const (
	PackerNone       PackerType = "None"
	PackerMPRESS     PackerType = "MPRESS"
	PackerUPX        PackerType = "UPX"
	PackerASPack     PackerType = "ASPack"
	PackerPECompact  PackerType = "PECompact"
	PackerPETite     PackerType = "PETite"
	PackerNSPack     PackerType = "NSPack"
	PackerThemida    PackerType = "Themida"
	PackerVMProtect  PackerType = "VMProtect"
	PackerEnigma     PackerType = "Enigma"
	PackerASProtect  PackerType = "ASProtect"
	PackerExeCryptor PackerType = "ExeCryptor"
	PackerObsidium   PackerType = "Obsidium"
	PackerUnknown    PackerType = "Unknown Packer"
)

// CompilerType names a known compiler or script bundler.
type CompilerType string

const (
	CompilerUnknown    CompilerType = "Unknown"
	CompilerMSVC       CompilerType = "Microsoft Visual C++"
	CompilerGCC        CompilerType = "GCC"
	CompilerDelphi     CompilerType = "Delphi"
	CompilerMinGW      CompilerType = "MinGW"
	CompilerAutoHotkey CompilerType = "AutoHotkey"
	CompilerDotNet     CompilerType = ".NET"
	CompilerVB         CompilerType = "Visual Basic"
)

const (
	confidenceSignature        = 0.8
	confidenceSignatureVersion = 0.9
	confidenceSectionName      = 0.9
	confidenceHeuristic        = 0.6

	highEntropy            = 7.5
	imageScnMemExecute     = 0x20000000
	maxHeuristicSectionCnt = 3
)

type packerSignature struct {
	pattern []byte
	// window is the number of leading bytes searched.
	window  int
	packer  PackerType
	version *regexp.Regexp
}

func packerSig(pattern string, window int, packer PackerType, version string) packerSignature {
	sig := packerSignature{pattern: []byte(pattern), window: window, packer: packer}
	if version != "" {
		sig.version = regexp.MustCompile(version)
	}
	return sig
}

var packerSignatures = []packerSignature{
	packerSig("MPRESS 2.", 0x400, PackerMPRESS, `MPRESS (\d+\.\d+)`),
	packerSig(".MPRESS", 0x1000, PackerMPRESS, ""),
	packerSig("MPRESS1", 0x1000, PackerMPRESS, ""),
	packerSig("MPRESS2", 0x1000, PackerMPRESS, ""),
	packerSig("UPX!", 0x1000, PackerUPX, `UPX (\d+\.\d+)`),
	packerSig("$Info: This file is packed with the UPX", 0x1000, PackerUPX, ""),
	packerSig(".UPX0", 0x1000, PackerUPX, ""),
	packerSig(".UPX1", 0x1000, PackerUPX, ""),
	packerSig("UPX0", 0x1000, PackerUPX, ""),
	packerSig("UPX1", 0x1000, PackerUPX, ""),
	packerSig("UPX2", 0x1000, PackerUPX, ""),
	packerSig("aPLib", 0x1000, PackerASPack, ""),
	packerSig(".aspack", 0x1000, PackerASPack, ""),
	packerSig(".adata", 0x1000, PackerASPack, ""),
	packerSig("ASPack", 0x2000, PackerASPack, `ASPack (\d+\.\d+)`),
	packerSig("PECompact2", 0x1000, PackerPECompact, `PECompact(\d+)`),
	packerSig(".pcmp", 0x1000, PackerPECompact, ""),
	packerSig("PEC2TO", 0x1000, PackerPECompact, ""),
	packerSig("PEC2", 0x1000, PackerPECompact, ""),
	packerSig(".petite", 0x1000, PackerPETite, ""),
	packerSig("petite", 0x1000, PackerPETite, ""),
	packerSig("PETite", 0x1000, PackerPETite, `PETite (\d+\.\d+)`),
	packerSig(".nsp0", 0x1000, PackerNSPack, ""),
	packerSig(".nsp1", 0x1000, PackerNSPack, ""),
	packerSig(".nsp2", 0x1000, PackerNSPack, ""),
	packerSig("NsPacK", 0x1000, PackerNSPack, ""),
	packerSig(".themida", 0x1000, PackerThemida, ""),
	packerSig("Themida", 0x2000, PackerThemida, ""),
	packerSig(".vmp0", 0x1000, PackerVMProtect, ""),
	packerSig(".vmp1", 0x1000, PackerVMProtect, ""),
	packerSig("VMProtect", 0x2000, PackerVMProtect, ""),
	packerSig(".enigma1", 0x1000, PackerEnigma, ""),
	packerSig(".enigma2", 0x1000, PackerEnigma, ""),
	packerSig("Enigma", 0x2000, PackerEnigma, ""),
	packerSig(".aspr", 0x1000, PackerASProtect, ""),
	packerSig("ASProtect", 0x2000, PackerASProtect, ""),
	packerSig(".ecr", 0x1000, PackerExeCryptor, ""),
	packerSig("ExeCryptor", 0x2000, PackerExeCryptor, ""),
	packerSig(".obsidium", 0x1000, PackerObsidium, ""),
	packerSig("Obsidium", 0x2000, PackerObsidium, ""),
}

type compilerSignature struct {
	pattern  []byte
	compiler CompilerType
	version  *regexp.Regexp
	// fixedVersion is reported if version is nil.
	fixedVersion string
}

func compilerSig(pattern string, compiler CompilerType, version string) compilerSignature {
	sig := compilerSignature{pattern: []byte(pattern), compiler: compiler}
	if version != "" {
		sig.version = regexp.MustCompile(version)
	}
	return sig
}

var compilerSignatures = []compilerSignature{
	compilerSig("AutoHotkey", CompilerAutoHotkey, `(\d+\.\d+\.\d+\.\d+)`),
	compilerSig("ahk.exe", CompilerAutoHotkey, ""),
	compilerSig("AutoHotkey.exe", CompilerAutoHotkey, ""),
	compilerSig("AHK2Exe", CompilerAutoHotkey, ""),
	compilerSig("Ahk2Exe", CompilerAutoHotkey, ""),
	compilerSig(">AUTOHOTKEY SCRIPT<", CompilerAutoHotkey, ""),
	compilerSig("AUTOHOTKEY SCRIPT", CompilerAutoHotkey, ""),
	compilerSig("AHK_SCRIPT", CompilerAutoHotkey, ""),
	compilerSig("Microsoft (R) 32-bit C/C++", CompilerMSVC, `(\d+\.\d+)`),
	compilerSig("Microsoft (R) C/C++", CompilerMSVC, `(\d+\.\d+)`),
	compilerSig("MSVCRT.dll", CompilerMSVC, ""),
	compilerSig("MSVCR", CompilerMSVC, ""),
	compilerSig("GCC: (GNU)", CompilerGCC, `(\d+\.\d+\.\d+)`),
	compilerSig("libgcc", CompilerGCC, ""),
	compilerSig("mingw", CompilerMinGW, ""),
	compilerSig("MinGW", CompilerMinGW, ""),
	compilerSig("Borland Delphi", CompilerDelphi, `(\d+\.\d+)`),
	compilerSig("Embarcadero Delphi", CompilerDelphi, `(\d+\.\d+)`),
	compilerSig("mscoree.dll", CompilerDotNet, ""),
	compilerSig(".NET Framework", CompilerDotNet, `(\d+\.\d+)`),
	{pattern: []byte("VB5!"), compiler: CompilerVB, fixedVersion: "5.0"},
	{pattern: []byte("VB6!"), compiler: CompilerVB, fixedVersion: "6.0"},
	compilerSig("MSVBVM", CompilerVB, ""),
}

var autoHotkeyVersionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)AutoHotkey\s+(\d+\.\d+\.\d+\.\d+)`),
	regexp.MustCompile(`(?i)AutoHotkey\s+v(\d+\.\d+\.\d+)`),
	regexp.MustCompile(`(?i)AHK\s+(\d+\.\d+\.\d+)`),
}

// PackerGuess is the outcome of the packer detection.
type PackerGuess struct {
	Packer     PackerType `json:"packer"`
	Version    string     `json:"version,omitempty"`
	Confidence float64    `json:"confidence"`
}

// DetectPacker returns the most confident packer guess for the file
// content data with the given sections. Signatures in the leading bytes,
// section names and an entropy heuristic are considered.
func DetectPacker(data []byte, sections []*SectionInfo) PackerGuess {
	best := PackerGuess{Packer: PackerNone}

	for _, sig := range packerSignatures {
		window := data
		if len(window) > sig.window {
			window = window[:sig.window]
		}
		if !bytes.Contains(window, sig.pattern) {
			continue
		}

		guess := PackerGuess{Packer: sig.packer, Confidence: confidenceSignature}
		if sig.version != nil {
			if m := sig.version.FindSubmatch(window); m != nil {
				guess.Version = string(m[1])
				guess.Confidence = confidenceSignatureVersion
			}
		}
		if guess.Confidence > best.Confidence {
			best = guess
		}
	}

	if guess := detectPackerBySections(sections); guess.Confidence > best.Confidence {
		best = guess
	}
	if guess := detectPackerHeuristic(sections); guess.Confidence > best.Confidence {
		best = guess
	}
	return best
}

type sectionRule struct {
	packer PackerType
	match  func(name string) bool
}

var sectionRules = []sectionRule{
	{PackerUPX, func(name string) bool { return strings.HasPrefix(strings.ToUpper(name), "UPX") }},
	{PackerMPRESS, func(name string) bool { return strings.HasPrefix(strings.ToUpper(name), ".MPRESS") }},
	{PackerASPack, func(name string) bool { return strings.ToLower(name) == ".aspack" }},
	{PackerPECompact, func(name string) bool { return strings.ToLower(name) == ".pcmp" }},
}

func detectPackerBySections(sections []*SectionInfo) PackerGuess {
	for _, rule := range sectionRules {
		for _, s := range sections {
			if rule.match(s.Name) {
				return PackerGuess{Packer: rule.packer, Confidence: confidenceSectionName}
			}
		}
	}
	return PackerGuess{Packer: PackerNone}
}

func detectPackerHeuristic(sections []*SectionInfo) PackerGuess {
	if len(sections) == 0 || len(sections) > maxHeuristicSectionCnt {
		return PackerGuess{Packer: PackerNone}
	}
	highEntropySections := 0
	executableSections := 0
	for _, s := range sections {
		if s.Entropy > highEntropy {
			highEntropySections++
		}
		if s.Characteristics&imageScnMemExecute != 0 {
			executableSections++
		}
	}
	if highEntropySections > 0 && executableSections == 1 {
		return PackerGuess{Packer: PackerUnknown, Confidence: confidenceHeuristic}
	}
	return PackerGuess{Packer: PackerNone}
}

// DetectCompiler returns the first matching compiler signature and the
// version found in data, if any.
func DetectCompiler(data []byte) (CompilerType, string) {
	for _, sig := range compilerSignatures {
		if !bytes.Contains(data, sig.pattern) {
			continue
		}
		if sig.version == nil {
			return sig.compiler, sig.fixedVersion
		}
		if m := sig.version.FindSubmatch(data); m != nil {
			return sig.compiler, string(m[1])
		}
		return sig.compiler, ""
	}
	return CompilerUnknown, ""
}

// AutoHotkeyVersion reports whether data looks like a compiled AutoHotkey
// executable and extracts the interpreter version if present.
func AutoHotkeyVersion(data []byte) (bool, string) {
	found := false
	for _, sig := range compilerSignatures {
		if sig.compiler == CompilerAutoHotkey && bytes.Contains(data, sig.pattern) {
			found = true
			break
		}
	}
	if !found {
		return false, ""
	}
	for _, p := range autoHotkeyVersionPatterns {
		if m := p.FindSubmatch(data); m != nil {
			return true, string(m[1])
		}
	}
	return true, ""
}
