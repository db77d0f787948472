package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCookieJar_LastWriteWins(t *testing.T) {
	t.Parallel()

	jar := NewCookieJar()
	jar.Set("csrf", "first")
	jar.Set("session", "abc")
	jar.Set("csrf", "second")

	assert.Equal(t, "second", jar.Get("csrf"))
	assert.Equal(t, "csrf=second; session=abc", jar.Header())
	assert.Equal(t, "session=abc", jar.Pair("session"))
	assert.Empty(t, jar.Pair("missing"))
}

func TestCookieJar_AbsorbOverwrites(t *testing.T) {
	t.Parallel()

	jar := NewCookieJar()
	jar.Set("session", "old")

	recorder := httptest.NewRecorder()
	http.SetCookie(recorder, &http.Cookie{Name: "session", Value: "new", Path: "/", HttpOnly: true})
	http.SetCookie(recorder, &http.Cookie{Name: "csrf", Value: "tok"})

	jar.Absorb(recorder.Result())

	assert.Equal(t, "new", jar.Get("session"))
	assert.Equal(t, "tok", jar.Get("csrf"))
}
