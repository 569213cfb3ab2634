package segment

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidColumnSpec is returned for malformed "path:col" specs.
var ErrInvalidColumnSpec = errors.New("segment: invalid column spec")

// FileName returns the name of segment i of an array group stored at base.
func FileName(base string, i int) string {
	return fmt.Sprintf("%s.%04d", base, i)
}

// ColumnSpec formats a column address as "path:col".
func ColumnSpec(path string, col int) string {
	return path + ":" + strconv.Itoa(col)
}

// ParseColumnSpec splits "path:col" into its parts. A spec without a numeric
// suffix after its last colon is a bare path addressing column 0.
func ParseColumnSpec(spec string) (path string, col int, err error) {
	if spec == "" {
		return "", 0, fmt.Errorf("%w: empty", ErrInvalidColumnSpec)
	}

	i := strings.LastIndexByte(spec, ':')
	if i < 0 || !isDigits(spec[i+1:]) {
		return spec, 0, nil
	}
	if i == 0 {
		return "", 0, fmt.Errorf("%w: %q has no path", ErrInvalidColumnSpec, spec)
	}

	col, err = strconv.Atoi(spec[i+1:])
	if err != nil {
		return "", 0, fmt.Errorf("%w: %q: %w", ErrInvalidColumnSpec, spec, err)
	}
	return spec[:i], col, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
