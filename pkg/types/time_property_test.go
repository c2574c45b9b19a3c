package types

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestProperty_TimestampOrdering checks that comparing stored timestamps as
// strings agrees with comparing the instants they encode. Verification
// queries rely on this to check created_at >= published_at in SQL.
func TestProperty_TimestampOrdering(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("string order matches time order", prop.ForAll(
		func(aSec, bSec int64) bool {
			a := time.Unix(aSec, 0)
			b := time.Unix(bSec, 0)
			fa, fb := FormatTime(a), FormatTime(b)
			switch {
			case a.Before(b):
				return fa < fb
			case a.After(b):
				return fa > fb
			default:
				return fa == fb
			}
		},
		// 2001-09-09 .. 2033-05-18
		gen.Int64Range(1000000000, 2000000000),
		gen.Int64Range(1000000000, 2000000000),
	))

	properties.Property("format then parse is identity at second precision", prop.ForAll(
		func(sec int64) bool {
			orig := time.Unix(sec, 0)
			parsed, err := ParseTime(FormatTime(orig))
			return err == nil && parsed.Equal(orig)
		},
		gen.Int64Range(1000000000, 2000000000),
	))

	properties.TestingRun(t)
}
