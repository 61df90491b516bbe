package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/dmitrijs2005/vaultcli/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/net/publicsuffix"
)

const cookiesKey = "cookies"

// CookieStore persists the session cookies between runs. The metadata
// repository satisfies it.
type CookieStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

type storedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// nowFn is a test seam for credential expiry checks.
var nowFn = time.Now

// sessionJar is an http.CookieJar that can be emptied while requests may
// still be running.
type sessionJar struct {
	mu  sync.Mutex
	jar *cookiejar.Jar
}

func newSessionJar() *sessionJar {
	return &sessionJar{jar: newCookieJar()}
}

func newCookieJar() *cookiejar.Jar {
	// cookiejar.New never fails with these options.
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return jar
}

func (j *sessionJar) current() *cookiejar.Jar {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar
}

func (j *sessionJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.current().SetCookies(u, cookies)
}

func (j *sessionJar) Cookies(u *url.URL) []*http.Cookie {
	return j.current().Cookies(u)
}

// Reset drops every cookie.
func (j *sessionJar) Reset() {
	j.mu.Lock()
	j.jar = newCookieJar()
	j.mu.Unlock()
}

// restoreCookies loads persisted cookies for base into the jar.
func restoreCookies(ctx context.Context, store CookieStore, jar http.CookieJar, base *url.URL) error {
	if store == nil {
		return nil
	}
	data, err := store.Get(ctx, cookiesKey)
	if err != nil {
		return fmt.Errorf("load cookies: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	var stored []storedCookie
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("decode cookies: %w", err)
	}
	cookies := make([]*http.Cookie, 0, len(stored))
	for _, s := range stored {
		cookies = append(cookies, &http.Cookie{Name: s.Name, Value: s.Value, Path: "/"})
	}
	jar.SetCookies(base, cookies)
	return nil
}

// persistCookies writes the jar's cookies for base to the store, deleting
// the entry when there are none left.
func persistCookies(ctx context.Context, store CookieStore, jar http.CookieJar, base *url.URL) error {
	if store == nil {
		return nil
	}
	cookies := jar.Cookies(base)
	if len(cookies) == 0 {
		return store.Delete(ctx, cookiesKey)
	}
	stored := make([]storedCookie, 0, len(cookies))
	for _, c := range cookies {
		stored = append(stored, storedCookie{Name: c.Name, Value: c.Value})
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	return store.Set(ctx, cookiesKey, data)
}

// credentialValid reports whether a session cookie value is usable. Opaque
// values are trusted; a JWT whose exp has passed is not. The token is not
// verified: the server remains the authority.
func credentialValid(value string) bool {
	if value == "" {
		return false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(value, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return exp.After(nowFn())
}

func hasSessionCookie(jar http.CookieJar, base *url.URL) bool {
	for _, c := range jar.Cookies(base) {
		if c.Name == common.SessionCookieName {
			return credentialValid(c.Value)
		}
	}
	return false
}
