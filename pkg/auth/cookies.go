package auth

import (
	"net/http"
	"sort"
	"strings"
)

// CookieJar accumulates cookies across the login handshake. It is keyed by
// cookie name with last-write-wins semantics: the identity provider rotates
// cookies at nearly every hop, including on error responses, and only the
// latest value of each is valid.
type CookieJar map[string]string

func NewCookieJar() CookieJar {
	return make(CookieJar)
}

// Absorb folds every Set-Cookie header of a response into the jar,
// overwriting existing entries of the same name. Attributes (Path, Expires,
// HttpOnly) are discarded; the handshake only ever replays name=value pairs.
func (j CookieJar) Absorb(resp *http.Response) {
	if resp == nil {
		return
	}

	for _, cookie := range resp.Cookies() {
		j[cookie.Name] = cookie.Value
	}
}

// Get returns the value of a cookie, or the empty string.
func (j CookieJar) Get(name string) string {
	return j[name]
}

// Set stores a cookie value.
func (j CookieJar) Set(name, value string) {
	j[name] = value
}

// Pair returns one cookie as a "name=value" pair, or the empty string when
// absent. Used to retain the session cookie for later silent refresh.
func (j CookieJar) Pair(name string) string {
	value, ok := j[name]
	if !ok {
		return ""
	}

	return name + "=" + value
}

// Header renders the jar as a Cookie header value. Names are sorted so the
// output is deterministic.
func (j CookieJar) Header() string {
	names := make([]string, 0, len(j))
	for name := range j {
		names = append(names, name)
	}

	sort.Strings(names)

	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, name+"="+j[name])
	}

	return strings.Join(pairs, "; ")
}
