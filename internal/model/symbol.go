package model

import "unicode"

const maxSymbolLen = 32

// ValidSymbol reports whether s can be used as a symbol and as part of a cache key.
func ValidSymbol(s string) bool {
	if len(s) == 0 || len(s) > maxSymbolLen {
		return false
	}
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsControl(r) || r == ':' {
			return false
		}
	}
	return true
}
