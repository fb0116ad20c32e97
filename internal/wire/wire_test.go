package wire

import (
	"testing"

	"github.com/tidwall/gjson"
)

func TestUint(t *testing.T) {
	cases := []struct {
		json string
		want uint64
		ok   bool
	}{
		{`0`, 0, true},
		{`42`, 42, true},
		{`1e3`, 1000, true},
		{`-1`, 0, false},
		{`1.5`, 0, false},
		{`"7"`, 0, false},
		{`null`, 0, false},
	}
	for _, c := range cases {
		got, ok := Uint(gjson.Parse(c.json))
		if ok != c.ok || got != c.want {
			t.Errorf("Uint(%s) = %d, %v; want %d, %v", c.json, got, ok, c.want, c.ok)
		}
	}
}
