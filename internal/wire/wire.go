// Package wire holds gjson helpers shared by the manifest and container decoders.
package wire

import (
	"math"

	"github.com/tidwall/gjson"
)

// Uint returns r as an unsigned integer if it is a non-negative whole JSON number.
func Uint(r gjson.Result) (uint64, bool) {
	if r.Type != gjson.Number || r.Num < 0 || r.Num != math.Trunc(r.Num) {
		return 0, false
	}
	return r.Uint(), true
}
