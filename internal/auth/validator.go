package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/vidgrab/internal/extractor"
	"github.com/tanq16/vidgrab/internal/utils"
)

const (
	ReasonInvalidURL   = "Invalid URL"
	ReasonUnavailable  = "Unavailable"
	ReasonTimeout      = "Timeout"
	ReasonNoSource     = "No credential source configured"
	ReasonUnreadable   = "Credential source unreadable"
	ReasonStillBlocked = "Authorization still required"
)

// Credentials is an authorized context the extractor can reuse.
type Credentials struct {
	Source   string
	AuthArgs []string
	Jar      http.CookieJar
}

type CredentialSource interface {
	Name() string
	Read(ctx context.Context) (*Credentials, error)
}

// Session is the outcome of an access check or a credential acquisition.
type Session struct {
	OK     bool   `json:"ok"`
	Source string `json:"source,omitempty"`
	Reason string `json:"reason,omitempty"`
	Detail string `json:"detail,omitempty"`
}

type cachedSession struct {
	session Session
	expires time.Time
}

type Options struct {
	Timeout  time.Duration
	CacheTTL time.Duration
}

type Validator struct {
	extractor extractor.Extractor
	source    CredentialSource
	client    *utils.HTTPClient
	options   Options
	now       func() time.Time

	mu       sync.RWMutex
	active   *Credentials
	sessions map[string]cachedSession
}

func NewValidator(ext extractor.Extractor, source CredentialSource, client *utils.HTTPClient, options Options) *Validator {
	if options.Timeout <= 0 {
		options.Timeout = 30 * time.Second
	}
	if client == nil {
		client = utils.NewHTTPClient(utils.HTTPClientConfig{})
	}
	return &Validator{
		extractor: ext,
		source:    source,
		client:    client,
		options:   options,
		now:       time.Now,
		sessions:  make(map[string]cachedSession),
	}
}

// AuthArgs returns the extractor arguments of the active credential context, if any.
func (v *Validator) AuthArgs() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.active == nil {
		return nil
	}
	return append([]string(nil), v.active.AuthArgs...)
}

func (v *Validator) Current() *Credentials {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.active
}

func (v *Validator) SourceName() string {
	if v.source == nil {
		return ""
	}
	return v.source.Name()
}

// Activate reads the configured source and installs it without a probe. It is
// used at startup so a readable cookies export applies from the first request.
func (v *Validator) Activate(ctx context.Context) error {
	if v.source == nil {
		return nil
	}
	creds, err := v.source.Read(ctx)
	if err != nil {
		return err
	}
	v.install(creds)
	return nil
}

func (v *Validator) install(creds *Credentials) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.active = creds
	v.sessions = make(map[string]cachedSession)
}

func domainOf(raw string) (string, bool) {
	if !utils.IsHTTPURL(raw) {
		return "", false
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	return strings.ToLower(u.Host), true
}

// CheckAccess reports whether the URL can be read with the current credential
// context. Every failure is reported as a negative session, never as an error.
func (v *Validator) CheckAccess(ctx context.Context, rawURL string) Session {
	domain, ok := domainOf(rawURL)
	if !ok {
		return Session{Reason: ReasonInvalidURL, Source: v.SourceName()}
	}
	if cached, ok := v.cached(domain); ok {
		return cached
	}
	ctx, cancel := context.WithTimeout(ctx, v.options.Timeout)
	defer cancel()

	session := Session{OK: true, Source: v.SourceName()}
	if err := v.reachable(ctx, rawURL); err != nil {
		log.Debug().Str("op", "auth/check").Err(err).Msgf("%s unreachable", domain)
		session = Session{Reason: ReasonUnavailable, Detail: err.Error(), Source: v.SourceName()}
	} else if _, err := v.extractor.Probe(ctx, extractor.ProbeRequest{URL: rawURL, AuthArgs: v.AuthArgs()}); err != nil {
		session = Session{Reason: ReasonUnavailable, Detail: utils.DetailOf(err), Source: v.SourceName()}
	}
	v.store(domain, session)
	return session
}

func (v *Validator) reachable(ctx context.Context, rawURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return err
	}
	client := v.client
	if creds := v.Current(); creds != nil && creds.Jar != nil {
		client = client.WithJar(creds.Jar)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (v *Validator) cached(domain string) (Session, bool) {
	if v.options.CacheTTL <= 0 {
		return Session{}, false
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	entry, ok := v.sessions[domain]
	if !ok || v.now().After(entry.expires) {
		return Session{}, false
	}
	return entry.session, true
}

func (v *Validator) store(domain string, session Session) {
	if v.options.CacheTTL <= 0 {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sessions[domain] = cachedSession{session: session, expires: v.now().Add(v.options.CacheTTL)}
}

// ObtainCredentials reads the configured source and keeps it only if the
// extractor can then read the URL. On any failure nothing changes.
func (v *Validator) ObtainCredentials(ctx context.Context, rawURL string) Session {
	if _, ok := domainOf(rawURL); !ok {
		return Session{Reason: ReasonInvalidURL, Source: v.SourceName()}
	}
	if v.source == nil {
		return Session{Reason: ReasonNoSource}
	}
	ctx, cancel := context.WithTimeout(ctx, v.options.Timeout)
	defer cancel()

	creds, err := v.source.Read(ctx)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Session{Reason: ReasonTimeout, Source: v.source.Name()}
		}
		return Session{Reason: ReasonUnreadable, Detail: err.Error(), Source: v.source.Name()}
	}
	_, err = v.extractor.Probe(ctx, extractor.ProbeRequest{URL: rawURL, AuthArgs: creds.AuthArgs})
	switch {
	case err == nil:
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return Session{Reason: ReasonTimeout, Source: creds.Source}
	case utils.KindOf(err) == utils.KindAuthRequired:
		return Session{Reason: ReasonStillBlocked, Detail: utils.DetailOf(err), Source: creds.Source}
	default:
		return Session{Reason: ReasonUnavailable, Detail: utils.DetailOf(err), Source: creds.Source}
	}
	v.install(creds)
	log.Info().Str("op", "auth/obtain").Msgf("credentials from %s accepted", creds.Source)
	return Session{OK: true, Source: creds.Source}
}
