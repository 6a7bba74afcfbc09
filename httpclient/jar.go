package httpclient

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"golang.org/x/net/publicsuffix"
)

// CloneJar copies every cookie stored for the supplied origins into a freshly
// constructed jar. It is a pure value copy: mutating the clone never affects
// the source jar. Only origins listed by the caller are copied – a cookie jar
// exposes no way to enumerate its stored origins.
func CloneJar(src http.CookieJar, origins []*url.URL) (http.CookieJar, error) {
	clone, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	if src == nil {
		return clone, nil
	}
	for _, origin := range origins {
		cookies := src.Cookies(origin)
		if len(cookies) == 0 {
			continue
		}
		copies := make([]*http.Cookie, 0, len(cookies))
		for _, cookie := range cookies {
			copied := *cookie
			copies = append(copies, &copied)
		}
		clone.SetCookies(origin, copies)
	}
	return clone, nil
}
