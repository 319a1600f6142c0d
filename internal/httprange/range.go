// Package httprange parses the byte ranges of Range and Content-Range headers.
package httprange

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// UnknownSize is the Size of a Content-Range whose complete length is "*".
const UnknownSize = -1

type Range struct {
	Start  int64
	Length int64
}

// ContentRange is a parsed "bytes start-end/size" header. Start and End are
// inclusive offsets. Unsatisfied is set for "bytes */size".
type ContentRange struct {
	Start, End, Size int64
	Unsatisfied      bool
}

// Get the number of bytes in the range.
func (cr *ContentRange) Length() int64 {
	if cr.Unsatisfied {
		return 0
	}
	return cr.End - cr.Start + 1
}

// Determine whether the range ends at the last byte of the representation.
func (cr *ContentRange) IsLastByte() bool {
	return cr.Size != UnknownSize && cr.End+1 >= cr.Size
}

// Determine whether the range continues a download that already holds offset bytes.
func (cr *ContentRange) Resumes(offset int64) bool {
	return !cr.Unsatisfied && cr.Start == offset
}

// Parse a Range request header against a representation of the given size.
// An empty header yields no ranges and no error.
func ParseRange(s string, size int64) ([]Range, error) {
	if s == "" {
		return nil, nil
	}
	const b = "bytes="
	if !strings.HasPrefix(s, b) {
		return nil, fmt.Errorf("invalid range header %q", s)
	}
	var ranges []Range
	for _, ra := range strings.Split(s[len(b):], ",") {
		ra = strings.TrimSpace(ra)
		if ra == "" {
			continue
		}
		i := strings.Index(ra, "-")
		if i < 0 {
			return nil, fmt.Errorf("invalid range header %q", s)
		}
		var r Range
		start, end := strings.TrimSpace(ra[:i]), strings.TrimSpace(ra[i+1:])
		if start == "" {
			// Suffix range: the last n bytes.
			n, err := strconv.ParseInt(end, 10, 64)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("invalid range header %q", s)
			}
			if n > size {
				n = size
			}
			r.Start = size - n
			r.Length = n
		} else {
			n, err := strconv.ParseInt(start, 10, 64)
			if err != nil || n >= size || n < 0 {
				return nil, fmt.Errorf("invalid range header %q", s)
			}
			r.Start = n
			if end == "" {
				r.Length = size - r.Start
			} else {
				n, err := strconv.ParseInt(end, 10, 64)
				if err != nil || r.Start > n {
					return nil, fmt.Errorf("invalid range header %q", s)
				}
				if n >= size {
					n = size - 1
				}
				r.Length = n - r.Start + 1
			}
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}

// Parse a Content-Range response header. An empty header yields nil and no error.
func ParseContentRange(s string) (*ContentRange, error) {
	const b = "bytes "
	if s == "" {
		return nil, nil
	}
	if !strings.HasPrefix(s, b) {
		return nil, errors.New("invalid unit of Content-Range header")
	}
	r := strings.Split(s[len(b):], "/")
	if len(r) != 2 {
		return nil, errors.New("invalid size of Content-Range header")
	}
	cr := &ContentRange{Size: UnknownSize}
	if sz := strings.TrimSpace(r[1]); sz != "*" {
		size, err := strconv.ParseInt(sz, 10, 64)
		if err != nil || size < 0 {
			return nil, errors.New("cannot parse size of Content-Range header")
		}
		cr.Size = size
	}
	if strings.TrimSpace(r[0]) == "*" {
		if cr.Size == UnknownSize {
			return nil, errors.New("unsatisfied Content-Range header must carry a size")
		}
		cr.Unsatisfied = true
		return cr, nil
	}
	r = strings.Split(r[0], "-")
	if len(r) != 2 {
		return nil, errors.New("cannot parse Content-Range header, expected format \"start-end\"")
	}
	start, err := strconv.ParseInt(strings.TrimSpace(r[0]), 10, 64)
	if err != nil {
		return nil, errors.New("cannot parse start of Content-Range header")
	}
	end, err := strconv.ParseInt(strings.TrimSpace(r[1]), 10, 64)
	if err != nil {
		return nil, errors.New("cannot parse end of Content-Range header")
	}
	if start > end || (cr.Size != UnknownSize && end >= cr.Size) {
		return nil, errors.New("invalid range of Content-Range header")
	}
	cr.Start, cr.End = start, end
	return cr, nil
}
