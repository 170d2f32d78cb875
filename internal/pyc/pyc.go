// Package pyc turns the marshalled code object printed by a protected module
// loader back into a loadable .pyc file.
package pyc

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// HeaderSize is the length of the .pyc header: magic, flags, mtime and source
// size, four bytes each.
const HeaderSize = 16

// MagicSize is the length of the interpreter magic number.
const MagicSize = 4

// ErrNotBytesLiteral is returned when the input is not a b'...' or b"..."
// literal.
var ErrNotBytesLiteral = errors.New("pyc: input is not a bytes literal")

// IsBytesLiteral reports whether output looks like the repr of a bytes object.
func IsBytesLiteral(output string) bool {
	return strings.HasPrefix(strings.TrimSpace(output), "b'") || strings.HasPrefix(strings.TrimSpace(output), `b"`)
}

// DecodeBytesLiteral decodes the printed repr of a bytes object into the raw
// bytes it denotes. Characters outside an escape sequence are taken as
// Latin-1, so every rune must fit in one byte.
func DecodeBytesLiteral(literal string) ([]byte, error) {
	s := strings.TrimSpace(literal)
	if len(s) < 3 || s[0] != 'b' || (s[1] != '\'' && s[1] != '"') || s[len(s)-1] != s[1] {
		return nil, ErrNotBytesLiteral
	}
	body := []rune(s[2 : len(s)-1])

	out := make([]byte, 0, len(body))
	for i := 0; i < len(body); i++ {
		r := body[i]
		if r != '\\' {
			if r > 0xff {
				return nil, fmt.Errorf("pyc: character %q at offset %d is not Latin-1", r, i)
			}
			out = append(out, byte(r))
			continue
		}
		if i+1 >= len(body) {
			return nil, fmt.Errorf("pyc: dangling escape at offset %d", i)
		}
		i++
		switch body[i] {
		case '\\':
			out = append(out, '\\')
		case '\'':
			out = append(out, '\'')
		case '"':
			out = append(out, '"')
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case 'a':
			out = append(out, '\a')
		case 'b':
			out = append(out, '\b')
		case 'f':
			out = append(out, '\f')
		case 'v':
			out = append(out, '\v')
		case '0', '1', '2', '3', '4', '5', '6', '7':
			end := i
			for end < len(body) && end < i+3 && body[end] >= '0' && body[end] <= '7' {
				end++
			}
			v, err := strconv.ParseUint(string(body[i:end]), 8, 16)
			if err != nil || v > 0xff {
				return nil, fmt.Errorf("pyc: invalid octal escape at offset %d", i-1)
			}
			out = append(out, byte(v))
			i = end - 1
		case 'x':
			if i+2 >= len(body) {
				return nil, fmt.Errorf("pyc: truncated \\x escape at offset %d", i-1)
			}
			b, err := hex.DecodeString(string(body[i+1 : i+3]))
			if err != nil {
				return nil, fmt.Errorf("pyc: invalid \\x escape at offset %d: %w", i-1, err)
			}
			out = append(out, b[0])
			i += 2
		default:
			// Unknown escapes keep the backslash.
			out = append(out, '\\')
			i--
		}
	}
	return out, nil
}

// Assemble prefixes code with a .pyc header made of magic followed by twelve
// zero bytes.
func Assemble(magic, code []byte) ([]byte, error) {
	if len(magic) != MagicSize {
		return nil, fmt.Errorf("pyc: magic number must be %d bytes, got %d", MagicSize, len(magic))
	}
	out := make([]byte, HeaderSize, HeaderSize+len(code))
	copy(out, magic)
	return append(out, code...), nil
}

// MagicScript prints the running interpreter's magic number as hex.
const MagicScript = "import importlib.util; print(importlib.util.MAGIC_NUMBER.hex())"

// ParseMagic parses the hex output of MagicScript.
func ParseMagic(output string) ([]byte, error) {
	magic, err := hex.DecodeString(strings.TrimSpace(output))
	if err != nil {
		return nil, fmt.Errorf("pyc: parse magic number: %w", err)
	}
	if len(magic) != MagicSize {
		return nil, fmt.Errorf("pyc: magic number must be %d bytes, got %d", MagicSize, len(magic))
	}
	return magic, nil
}
