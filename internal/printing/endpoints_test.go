package printing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEndpoints(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []string
	}{
		{
			"single url",
			"http://printer-1:9100",
			[]string{"http://printer-1:9100"},
		},
		{
			"single url trailing slash",
			"http://printer-1:9100/",
			[]string{"http://printer-1:9100"},
		},
		{
			"comma separated",
			"http://printer-1:9100, http://printer-2:9100/",
			[]string{"http://printer-1:9100", "http://printer-2:9100"},
		},
		{
			"bracketed json",
			`["http://printer-1:9100/", "https://printer-2:9100"]`,
			[]string{"http://printer-1:9100", "https://printer-2:9100"},
		},
		{
			"bracketed unquoted",
			"[http://printer-1:9100, http://printer-2:9100]",
			[]string{"http://printer-1:9100", "http://printer-2:9100"},
		},
		{
			"all three forms agree",
			`["http://p:1"]`,
			ParseEndpoints("http://p:1/"),
		},
		{"empty", "", nil},
		{"whitespace", "   ", nil},
		{"unterminated bracket", `["http://p:1"`, nil},
		{"not a url", "printer-1", nil},
		{"mixed garbage", "http://p:1,not-a-url", nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseEndpoints(tc.raw)
			if len(tc.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tc.want, got)
		})
	}
}
