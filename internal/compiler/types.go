package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/parsynth/internal/ir"
)

// ParseDataType parses a C type as written in network descriptions:
// an optional "const " prefix, a type name, an optional array suffix
// ("[16]", or "[]" for an unknown size) and an optional trailing "*".
func ParseDataType(s string) (ir.DataType, error) {
	var dt ir.DataType
	rest := strings.TrimSpace(s)
	if after, ok := strings.CutPrefix(rest, "const "); ok {
		dt.IsConst = true
		rest = strings.TrimSpace(after)
	}
	if after, ok := strings.CutSuffix(rest, "*"); ok {
		dt.IsPointer = true
		rest = strings.TrimSpace(after)
	}
	if open := strings.IndexByte(rest, '['); open >= 0 {
		if !strings.HasSuffix(rest, "]") {
			return ir.DataType{}, fmt.Errorf("type %q: unterminated array suffix", s)
		}
		size := strings.TrimSpace(rest[open+1 : len(rest)-1])
		dt.IsArray = true
		if size != "" && size != "?" {
			n, err := strconv.Atoi(size)
			if err != nil || n <= 0 {
				return ir.DataType{}, fmt.Errorf("type %q: invalid array size %q", s, size)
			}
			dt.ArraySize = n
		}
		rest = strings.TrimSpace(rest[:open])
	}
	if rest == "" || strings.ContainsAny(rest, "[]*") {
		return ir.DataType{}, fmt.Errorf("type %q: missing or malformed type name", s)
	}
	dt.Name = rest
	return dt, nil
}
