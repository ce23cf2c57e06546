package middleware

import (
	"strings"
	"testing"
)

func TestLeadingCode(t *testing.T) {
	cases := []struct {
		body string
		code int
		ok   bool
	}{
		{`{"code":0,"data":{"player_id":"p1"}}`, 0, true},
		{`{"msg":"参数有误","code":400}`, 400, true},
		{`{"code":503,"data":{"payload":"` + strings.Repeat("x", 100), 503, true},
		{`{"status":"ok"}`, 0, false},
		{`[1,2]`, 0, false},
		{``, 0, false},
	}
	for _, c := range cases {
		code, ok := leadingCode([]byte(c.body))
		if code != c.code || ok != c.ok {
			t.Fatalf("body=%.30q 期望 (%d,%v), got=(%d,%v)", c.body, c.code, c.ok, code, ok)
		}
	}
}
