package auth

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

const (
	cookieDomain = iota
	cookieHostOnly
	cookiePath
	cookieSecure
	cookieExpiration
	cookieName
	cookieValue
	cookiePieces
)

// ParseNetscapeCookies loads a cookies.txt export into a jar and returns how many cookies it held.
func ParseNetscapeCookies(path string) (*cookiejar.Jar, int, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, 0, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()

	byDomain := make(map[string][]*http.Cookie)
	count := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		parts := strings.Split(strings.TrimRight(scanner.Text(), "\r"), "\t")
		if len(parts) != cookiePieces {
			continue
		}
		// JSON-valued cookies are not valid per RFC 6265 and net/http rejects them noisily
		if strings.Contains(parts[cookieValue], `"`) {
			continue
		}
		domain := strings.ToLower(parts[cookieDomain])
		httpOnly := false
		if strings.HasPrefix(domain, "#httponly_") {
			httpOnly = true
			domain = strings.TrimPrefix(domain, "#httponly_")
		}
		if domain == "" || strings.HasPrefix(domain, "#") {
			continue
		}
		cookie := &http.Cookie{
			Domain:   domain,
			Path:     parts[cookiePath],
			Secure:   strings.EqualFold(parts[cookieSecure], "true"),
			Name:     parts[cookieName],
			Value:    parts[cookieValue],
			HttpOnly: httpOnly,
		}
		if expire, err := strconv.ParseInt(parts[cookieExpiration], 10, 64); err == nil && expire > 0 {
			cookie.Expires = time.Unix(expire, 0)
		}
		byDomain[domain] = append(byDomain[domain], cookie)
		count++
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, err
	}
	for domain, cookies := range byDomain {
		u, err := url.Parse("https://" + strings.TrimPrefix(domain, "."))
		if err == nil {
			jar.SetCookies(u, cookies)
		}
	}
	return jar, count, nil
}

// CookieFileSource reads credentials from a Netscape cookies.txt export.
type CookieFileSource struct {
	Path string
}

func (s CookieFileSource) Name() string {
	return "cookies-file:" + s.Path
}

func (s CookieFileSource) Read(ctx context.Context) (*Credentials, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	jar, count, err := ParseNetscapeCookies(s.Path)
	if err != nil {
		return nil, fmt.Errorf("reading cookies file: %v", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("cookies file %s contains no cookies", s.Path)
	}
	return &Credentials{
		Source:   s.Name(),
		AuthArgs: []string{"--cookies", s.Path},
		Jar:      jar,
	}, nil
}
