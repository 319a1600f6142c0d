package httprange

import (
	"testing"
)

func TestParseRange(t *testing.T) {
	var tests = []struct {
		s      string
		length int64
		r      []Range
	}{
		{"", 0, nil},
		{"", 1000, nil},
		{"foo", 0, nil},
		{"bytes=", 0, nil},
		{"bytes=7", 10, nil},
		{"bytes= 7 ", 10, nil},
		{"bytes=1-", 0, nil},
		{"bytes=5-4", 10, nil},
		{"bytes=0-2,5-4", 10, nil},
		{"bytes=2-5,4-3", 10, nil},
		{"bytes=--5,4--3", 10, nil},
		{"bytes=A-", 10, nil},
		{"bytes=A- ", 10, nil},
		{"bytes=A-Z", 10, nil},
		{"bytes= -Z", 10, nil},
		{"bytes=5-Z", 10, nil},
		{"bytes=Ran-dom, garbage", 10, nil},
		{"bytes=0x01-0x02", 10, nil},
		{"bytes=         ", 10, nil},
		{"bytes= , , ,   ", 10, nil},
		{"bytes=0-9", 10, []Range{{0, 10}}},
		{"bytes=0-", 10, []Range{{0, 10}}},
		{"bytes=5-", 10, []Range{{5, 5}}},
		{"bytes=0-20", 10, []Range{{0, 10}}},
		{"bytes=15-,0-5", 10, nil},
		{"bytes=1-2,5-", 10, []Range{{1, 2}, {5, 5}}},
		{"bytes=-2 , 7-", 11, []Range{{9, 2}, {7, 4}}},
		{"bytes=0-0 ,2-2, 7-", 11, []Range{{0, 1}, {2, 1}, {7, 4}}},
		{"bytes=-5", 10, []Range{{5, 5}}},
		{"bytes=-15", 10, []Range{{0, 10}}},
		{"bytes=0-499", 10000, []Range{{0, 500}}},
		{"bytes=500-999", 10000, []Range{{500, 500}}},
		{"bytes=-500", 10000, []Range{{9500, 500}}},
		{"bytes=9500-", 10000, []Range{{9500, 500}}},
		{"bytes=0-0,-1", 10000, []Range{{0, 1}, {9999, 1}}},
		{"bytes=500-600,601-999", 10000, []Range{{500, 101}, {601, 399}}},
		{"bytes=500-700,601-999", 10000, []Range{{500, 201}, {601, 399}}},
	}

	for _, tt := range tests {
		r := tt.r
		ranges, err := ParseRange(tt.s, tt.length)
		if err != nil && r != nil {
			t.Errorf("ParseRange(%q) returned error %q", tt.s, err)
		}
		if len(ranges) != len(r) {
			t.Errorf("len(ParseRange(%q)) = %d, want %d", tt.s, len(ranges), len(r))
		}
		for i := range r {
			if ranges[i].Start != r[i].Start {
				t.Errorf("ParseRange(%q)[%d].start = %d, want %d", tt.s, i, ranges[i].Start, r[i].Start)
			}
			if ranges[i].Length != r[i].Length {
				t.Errorf("ParseRange(%q)[%d].length = %d, want %d", tt.s, i, ranges[i].Length, r[i].Length)
			}
		}
	}
}

func TestParseContentRange(t *testing.T) {
	var tests = []struct {
		s   string
		cr  *ContentRange
		err string
	}{
		{"", nil, ""},
		{"items 0-1/2", nil, "invalid unit of Content-Range header"},
		{"bytes 0-1", nil, "invalid size of Content-Range header"},
		{"bytes 500-600/x", nil, "cannot parse size of Content-Range header"},
		{"bytes -600/999", nil, "cannot parse start of Content-Range header"},
		{"bytes 0-/999", nil, "cannot parse end of Content-Range header"},
		{"bytes 600-500/999", nil, "invalid range of Content-Range header"},
		{"bytes 0-999/999", nil, "invalid range of Content-Range header"},
		{"bytes */*", nil, "unsatisfied Content-Range header must carry a size"},
		{"bytes 0-63/128", &ContentRange{Start: 0, End: 63, Size: 128}, ""},
		{"bytes 500-600/*", &ContentRange{Start: 500, End: 600, Size: UnknownSize}, ""},
		{"bytes */128", &ContentRange{Size: 128, Unsatisfied: true}, ""},
	}

	for _, tt := range tests {
		cr, err := ParseContentRange(tt.s)
		if tt.err != "" {
			if err == nil || err.Error() != tt.err {
				t.Errorf("ParseContentRange(%q) error = %v, want %s", tt.s, err, tt.err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseContentRange(%q) unexpected error %v", tt.s, err)
			continue
		}
		if tt.cr == nil {
			if cr != nil {
				t.Errorf("ParseContentRange(%q) = %+v, want nil", tt.s, cr)
			}
			continue
		}
		if *cr != *tt.cr {
			t.Errorf("ParseContentRange(%q) = %+v, want %+v", tt.s, *cr, *tt.cr)
		}
	}
}

func TestContentRangeHelpers(t *testing.T) {
	cr := &ContentRange{Start: 100, End: 199, Size: 200}
	if cr.Length() != 100 {
		t.Errorf("Length() = %d, want 100", cr.Length())
	}
	if !cr.IsLastByte() {
		t.Error("expected range to end at the last byte")
	}
	if !cr.Resumes(100) || cr.Resumes(0) {
		t.Error("expected range to resume only at offset 100")
	}
	unknown := &ContentRange{Start: 0, End: 9, Size: UnknownSize}
	if unknown.IsLastByte() {
		t.Error("expected unknown size never to be the last byte")
	}
	if (&ContentRange{Size: 10, Unsatisfied: true}).Length() != 0 {
		t.Error("expected unsatisfied range to have no length")
	}
}
