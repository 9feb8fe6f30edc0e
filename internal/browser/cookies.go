package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Cookie is one entry of a saved browser session, in the JSON layout that
// Playwright's storage export writes.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite"`
}

// LoadCookies reads a cookie file. A missing file is not an error: the run
// simply starts without a session.
func LoadCookies(path string) ([]Cookie, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cookies: %w", err)
	}

	var cookies []Cookie
	if err := json.Unmarshal(raw, &cookies); err != nil {
		// Playwright storage state wraps the list in {"cookies": [...]}.
		var state struct {
			Cookies []Cookie `json:"cookies"`
		}
		if errState := json.Unmarshal(raw, &state); errState != nil {
			return nil, fmt.Errorf("decode cookies: %w", err)
		}
		cookies = state.Cookies
	}

	out := cookies[:0]
	for _, c := range cookies {
		if c.Name == "" {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (c Cookie) sameSite() network.CookieSameSite {
	switch strings.ToLower(c.SameSite) {
	case "strict":
		return network.CookieSameSiteStrict
	case "lax":
		return network.CookieSameSiteLax
	case "none":
		return network.CookieSameSiteNone
	}
	return ""
}

func (c Cookie) expires(now time.Time) *cdp.TimeSinceEpoch {
	if c.Expires <= 0 {
		return nil
	}
	at := time.Unix(int64(c.Expires), 0)
	if !at.After(now) {
		return nil
	}
	ts := cdp.TimeSinceEpoch(at)
	return &ts
}

func (c Cookie) expired(now time.Time) bool {
	return c.Expires > 0 && !time.Unix(int64(c.Expires), 0).After(now)
}

// liveCookies drops cookies whose expiry has passed. Seeding one without its
// expiry would turn it into a session cookie.
func liveCookies(cookies []Cookie, now time.Time) []Cookie {
	out := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		if c.expired(now) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func setCookies(cookies []Cookie) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network: %w", err)
		}
		now := time.Now()
		for _, c := range liveCookies(cookies, now) {
			path := c.Path
			if path == "" {
				path = "/"
			}
			params := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly)
			if sameSite := c.sameSite(); sameSite != "" {
				params = params.WithSameSite(sameSite)
			}
			if exp := c.expires(now); exp != nil {
				params = params.WithExpires(exp)
			}
			if err := params.Do(ctx); err != nil {
				return fmt.Errorf("set cookie %s: %w", c.Name, err)
			}
		}
		return nil
	})
}
