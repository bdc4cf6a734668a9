package interval

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// PosType is the coordinate type.  It matches the coordinates of
// task.Region.
type PosType = uint32

// PosTypeMax is the End of an Entry with no positional restriction.
const PosTypeMax = math.MaxUint32

// Entry represents a single interval, with 0-based coordinates.
type Entry struct {
	ChrName string
	Start0  PosType
	End     PosType
}

// Unbounded reports whether e names a whole contig.
func (e Entry) Unbounded() bool {
	return e.Start0 == 0 && e.End == PosTypeMax
}

// ParseRegionString parses a region string of one of the forms
//   [contig ID]:[1-based first pos]-[last pos]
//   [contig ID]:[1-based pos]
//   [contig ID]
// returning a contig ID and 0-based interval boundaries.  The interval
// [0, PosTypeMax) is returned if there is no positional restriction.
func ParseRegionString(region string) (result Entry, err error) {
	if len(region) == 0 {
		err = errors.New("interval.ParseRegionString: empty region string")
		return
	}
	colonPos := strings.LastIndexByte(region, ':')
	if colonPos == -1 {
		result.ChrName = region
		result.Start0 = 0
		result.End = PosTypeMax
		return
	}
	if colonPos == 0 {
		err = errors.New("interval.ParseRegionString: empty contig ID")
		return
	}
	result.ChrName = region[0:colonPos]
	rangeStr := region[colonPos+1:]
	dashPos := strings.IndexByte(rangeStr, '-')
	if dashPos == -1 {
		var pos1 uint64
		if pos1, err = parsePos(rangeStr); err != nil {
			return
		}
		if pos1 == 0 {
			err = errors.Errorf("interval.ParseRegionString: position %v in region string out of range", rangeStr)
			return
		}
		result.Start0 = PosType(pos1 - 1)
		result.End = PosType(pos1)
		return
	}
	start1Str := rangeStr[:dashPos]
	endStr := rangeStr[dashPos+1:]
	var start1, end0 uint64
	if start1, err = parsePos(start1Str); err != nil {
		return
	}
	if start1 == 0 {
		err = errors.Errorf("interval.ParseRegionString: position %v in region string out of range", start1Str)
		return
	}
	if end0, err = parsePos(endStr); err != nil {
		return
	}
	// end0 == PosTypeMax is reserved for unbounded regions.
	if end0 < start1 || end0 >= PosTypeMax {
		err = errors.Errorf("interval.ParseRegionString: invalid range string %v", rangeStr)
		return
	}
	result.Start0 = PosType(start1 - 1)
	result.End = PosType(end0)
	return
}

// parsePos parses a decimal position, tolerating thousands separators.
func parsePos(s string) (uint64, error) {
	pos, err := strconv.ParseUint(strings.Replace(s, ",", "", -1), 10, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "interval.ParseRegionString: bad position %q", s)
	}
	return pos, nil
}
