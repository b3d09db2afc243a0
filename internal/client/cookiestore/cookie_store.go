// Package cookiestore persists the CLI's cookies between runs so the session
// survives across jobctl invocations.
package cookiestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/mkrupp/jobhunter/internal/infra/logging"
)

type entry struct {
	URL      string    `json:"url"`
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitzero"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"httpOnly,omitempty"` //nolint:revive,stylecheck
}

func (e entry) key() string {
	return e.URL + "|" + e.Domain + "|" + e.Path + "|" + e.Name
}

func (e entry) expired(now time.Time) bool {
	return !e.Expires.IsZero() && !now.Before(e.Expires)
}

func (e entry) cookie() *http.Cookie {
	//nolint:exhaustruct
	return &http.Cookie{
		Name:     e.Name,
		Value:    e.Value,
		Path:     e.Path,
		Domain:   e.Domain,
		Expires:  e.Expires,
		Secure:   e.Secure,
		HttpOnly: e.HttpOnly,
	}
}

// Store is an http.CookieJar backed by a JSON file. Reads are served from
// memory; every SetCookies merges into the file under an exclusive flock.
type Store struct {
	path string
	jar  *cookiejar.Jar
	log  logging.Logger
	m    *sync.Mutex
	now  func() time.Time
}

var _ http.CookieJar = (*Store)(nil)

// Open loads the cookie file at path. A missing file is an empty store.
func Open(ctx context.Context, path string) (*Store, error) {
	//nolint:exhaustruct
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("new cookie jar: %w", err)
	}

	store := &Store{
		path: path,
		jar:  jar,
		log:  logging.GetLogger("client.cookiestore").With(logging.Group("store", "path", path)),
		m:    new(sync.Mutex),
		now:  time.Now,
	}

	release, err := store.flock(ctx, syscall.LOCK_SH)
	if err != nil {
		return nil, err
	}
	defer release()

	entries, err := store.read()
	if err != nil {
		return nil, err
	}

	now := store.now()
	for _, e := range entries {
		if e.expired(now) {
			continue
		}

		u, err := url.Parse(e.URL)
		if err != nil {
			store.log.WarnContext(ctx, "skip cookie with bad url", "error", err)

			continue
		}

		jar.SetCookies(u, []*http.Cookie{e.cookie()})
	}

	return store, nil
}

// Cookies implements http.CookieJar.
func (s *Store) Cookies(u *url.URL) []*http.Cookie {
	return s.jar.Cookies(u)
}

// SetCookies implements http.CookieJar. Write failures are logged; the
// in-memory jar is updated regardless.
func (s *Store) SetCookies(u *url.URL, cookies []*http.Cookie) {
	s.jar.SetCookies(u, cookies)

	if err := s.persist(context.Background(), u, cookies); err != nil {
		s.log.Error("persist cookies failed", "error", err)
	}
}

// Clear removes every stored cookie from the file. The in-memory jar is left as is.
func (s *Store) Clear(ctx context.Context) error {
	s.m.Lock()
	defer s.m.Unlock()

	release, err := s.flock(ctx, syscall.LOCK_EX)
	if err != nil {
		return err
	}
	defer release()

	return s.write(nil)
}

func (s *Store) persist(ctx context.Context, u *url.URL, cookies []*http.Cookie) (err error) {
	s.m.Lock()
	defer s.m.Unlock()

	defer func() {
		if err == nil {
			s.log.DebugContext(ctx, "cookies persisted", "count", len(cookies))
		}
	}()

	release, err := s.flock(ctx, syscall.LOCK_EX)
	if err != nil {
		return err
	}
	defer release()

	entries, err := s.read()
	if err != nil {
		return err
	}

	byKey := make(map[string]entry, len(entries))
	order := make([]string, 0, len(entries))

	for _, e := range entries {
		if _, ok := byKey[e.key()]; !ok {
			order = append(order, e.key())
		}

		byKey[e.key()] = e
	}

	now := s.now()
	origin := (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}).String()

	for _, c := range cookies {
		//nolint:exhaustruct
		e := entry{
			URL:      origin,
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires.UTC(),
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}

		if c.MaxAge > 0 {
			e.Expires = now.Add(time.Duration(c.MaxAge) * time.Second).UTC()
		}

		if c.MaxAge < 0 || e.expired(now) {
			delete(byKey, e.key())

			continue
		}

		if _, ok := byKey[e.key()]; !ok {
			order = append(order, e.key())
		}

		byKey[e.key()] = e
	}

	out := make([]entry, 0, len(byKey))
	for _, key := range order {
		if e, ok := byKey[key]; ok && !e.expired(now) {
			out = append(out, e)
		}
	}

	return s.write(out)
}

func (s *Store) read() ([]entry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("read cookie file: %w", err)
	}

	if len(data) == 0 {
		return nil, nil
	}

	var entries []entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode cookie file: %w", err)
	}

	return entries, nil
}

func (s *Store) write(entries []entry) error {
	if entries == nil {
		entries = []entry{}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cookie file: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write cookie file: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)

		return fmt.Errorf("rename cookie file: %w", err)
	}

	return nil
}

func (s *Store) flock(ctx context.Context, mode int) (release func(), err error) {
	lockfile := s.path + ".lock"
	log := s.log.With(logging.Group("lock", "file", lockfile))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "lock failed", "error", err)
		}
	}()

	if err := os.MkdirAll(filepath.Dir(lockfile), 0o700); err != nil {
		return nil, fmt.Errorf("mkdir all: %w", err)
	}

	file, err := os.OpenFile(lockfile, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), mode); err != nil {
		_ = file.Close()

		return nil, fmt.Errorf("flock: %w", err)
	}

	return func() {
		_ = syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		_ = file.Close()
	}, nil
}
