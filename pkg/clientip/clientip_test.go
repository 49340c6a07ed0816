package clientip

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromRequest(t *testing.T) {
	for remote, want := range map[string]string{
		"203.0.113.7:51234":    "203.0.113.7",
		"203.0.113.7":          "203.0.113.7",
		"[2001:db8::1]:443":    "2001:db8::1",
		"2001:0db8:0000::0001": "2001:db8::1",
		" 198.51.100.2 ":       "198.51.100.2",
		"":                     Unknown,
		"not-an-ip":            "not-an-ip",
	} {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = remote
		assert.Equal(t, want, FromRequest(r), remote)
	}
}
