package checkpoint

import (
	"fmt"
	"strconv"
	"strings"
)

// Location is a program-counter address. It is the in-memory form of the
// on-disk "location" string: the disk form is always-leading
// with "*" and the in-memory form as the bare address, with "*" inserted
// only on output, mirroring how an interactive monitor parses several
// address spellings ($hex, 0xhex, bare hex) into one uint64 via ParseAddress.
type Location uint64

// String renders the debugger breakpoint-location spelling: a leading "*"
// followed by lowercase hex, e.g. "*0x401260".
func (l Location) String() string {
	return "*" + hexAddr(uint64(l))
}

func hexAddr(addr uint64) string {
	return "0x" + strconv.FormatUint(addr, 16)
}

// ParseLocation parses a checkpoint location string. It accepts the on-disk
// form ("*0x401260"), a bare "0x..." address, or a bare hex address with no
// prefix, in the same spirit as a monitor's address parser.
func ParseLocation(s string) (Location, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "*")
	if s == "" {
		return 0, fmt.Errorf("checkpoint: empty location")
	}

	trimmed := s
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		trimmed = trimmed[2:]
	}

	v, err := strconv.ParseUint(trimmed, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("checkpoint: invalid location %q: %w", s, err)
	}
	return Location(v), nil
}
