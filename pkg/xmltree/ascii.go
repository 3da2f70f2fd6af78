package xmltree

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/transform"
)

// asciiEscaper rewrites every non-ASCII rune as a backslash escape. Bytes that
// are not valid UTF-8 are escaped one by one.
type asciiEscaper struct {
	transform.NopResetter
}

func escapeRune(r rune, b byte, size int) string {
	switch {
	case r == utf8.RuneError && size == 1:
		return fmt.Sprintf(`\x%02x`, b)
	case r <= 0xff:
		return fmt.Sprintf(`\x%02x`, r)
	case r <= 0xffff:
		return fmt.Sprintf(`\u%04x`, r)
	default:
		return fmt.Sprintf(`\U%08x`, r)
	}
}

func (asciiEscaper) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		b := src[nSrc]
		if b < utf8.RuneSelf {
			if nDst >= len(dst) {
				return nDst, nSrc, transform.ErrShortDst
			}
			dst[nDst] = b
			nDst++
			nSrc++
			continue
		}
		if !atEOF && !utf8.FullRune(src[nSrc:]) {
			return nDst, nSrc, transform.ErrShortSrc
		}
		r, size := utf8.DecodeRune(src[nSrc:])
		esc := escapeRune(r, b, size)
		if nDst+len(esc) > len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		nDst += copy(dst[nDst:], esc)
		nSrc += size
	}
	return nDst, nSrc, nil
}

// ToASCII returns s with every non-ASCII character escaped. It never fails;
// on an unexpected transformer error the input is returned unchanged.
func ToASCII(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			out, _, err := transform.String(asciiEscaper{}, s)
			if err != nil {
				return s
			}
			return out
		}
	}
	return s
}
