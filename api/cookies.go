package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"

	"github.com/pkg/errors"

	"github.com/itsneelabh/storefront/core"
)

// storedCookie is the persisted form of a jar cookie. The jar only exposes
// name and value for outgoing cookies, so that is all that survives.
type storedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// cookieStore mirrors the jar's cookies for the backend URL into Memory.
// A nil store persists nothing.
type cookieStore struct {
	memory core.Memory
	key    string

	mu     sync.Mutex
	loaded bool
}

func (s *cookieStore) load(ctx context.Context, jar http.CookieJar, u *url.URL) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}

	raw, err := s.memory.Get(ctx, s.key)
	if err != nil {
		return errors.Wrap(err, "load session cookies")
	}
	s.loaded = true
	if raw == "" {
		return nil
	}

	var stored []storedCookie
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return errors.Wrap(core.ErrCorruptData, "session cookies")
	}
	cookies := make([]*http.Cookie, 0, len(stored))
	for _, sc := range stored {
		cookies = append(cookies, &http.Cookie{Name: sc.Name, Value: sc.Value, Path: "/"})
	}
	jar.SetCookies(u, cookies)
	return nil
}

func (s *cookieStore) save(ctx context.Context, jar http.CookieJar, u *url.URL) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cookies := jar.Cookies(u)
	if len(cookies) == 0 {
		return s.memory.Delete(ctx, s.key)
	}
	stored := make([]storedCookie, 0, len(cookies))
	for _, c := range cookies {
		stored = append(stored, storedCookie{Name: c.Name, Value: c.Value})
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	return s.memory.Set(ctx, s.key, string(data), 0)
}
