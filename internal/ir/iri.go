package ir

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// IRI normalization errors. Callers match them with errors.Is.
var (
	ErrEmptyIRI    = errors.New("empty IRI")
	ErrRelativeIRI = errors.New("IRI is not absolute")
	ErrInvalidIRI  = errors.New("invalid IRI")
)

// NormalizeIRI returns the canonical form of an absolute IRI.
//
// Every identifier stored or compared by the engine passes through here:
//   - surrounding whitespace trimmed, NFC normalized
//   - scheme and host lower-cased, default http/https ports dropped
//   - dot segments removed from the path, empty path under an authority becomes "/"
//   - percent-escape hex digits upper-cased
func NormalizeIRI(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrEmptyIRI
	}
	u, err := url.Parse(norm.NFC.String(s))
	if err != nil {
		return "", fmt.Errorf("%w %q: %v", ErrInvalidIRI, raw, err)
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("%w: %q", ErrRelativeIRI, raw)
	}
	return normalizeURL(u), nil
}

// ResolveIRI resolves ref against base and normalizes the result.
// An absolute ref ignores base; a relative ref requires an absolute base.
func ResolveIRI(base, ref string) (string, error) {
	r := strings.TrimSpace(ref)
	if r == "" {
		return "", ErrEmptyIRI
	}
	refURL, err := url.Parse(norm.NFC.String(r))
	if err != nil {
		return "", fmt.Errorf("%w %q: %v", ErrInvalidIRI, ref, err)
	}
	if refURL.IsAbs() {
		return normalizeURL(refURL), nil
	}
	if strings.TrimSpace(base) == "" {
		return "", fmt.Errorf("%w: %q (no base locator)", ErrRelativeIRI, ref)
	}
	baseURL, err := url.Parse(norm.NFC.String(strings.TrimSpace(base)))
	if err != nil {
		return "", fmt.Errorf("%w base %q: %v", ErrInvalidIRI, base, err)
	}
	if !baseURL.IsAbs() {
		return "", fmt.Errorf("%w: base %q", ErrRelativeIRI, base)
	}
	return normalizeURL(baseURL.ResolveReference(refURL)), nil
}

func normalizeURL(u *url.URL) string {
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Host != "" {
		host := strings.ToLower(u.Hostname())
		if strings.Contains(host, ":") {
			host = "[" + host + "]"
		}
		port := u.Port()
		if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
			port = ""
		}
		if port != "" {
			host += ":" + port
		}
		u.Host = host
	}
	if u.Opaque == "" {
		p := removeDotSegments(u.EscapedPath())
		if p == "" && u.Host != "" {
			p = "/"
		}
		if unescaped, err := url.PathUnescape(p); err == nil {
			u.Path = unescaped
			u.RawPath = p
		}
	}
	return upperPercentEscapes(u.String())
}

// removeDotSegments implements RFC 3986 section 5.2.4 for absolute paths.
func removeDotSegments(p string) string {
	if !strings.Contains(p, ".") {
		return p
	}
	segs := strings.Split(p, "/")
	out := make([]string, 0, len(segs))
	for i, seg := range segs {
		last := i == len(segs)-1
		switch seg {
		case ".":
			if last {
				out = append(out, "")
			}
		case "..":
			if len(out) > 1 {
				out = out[:len(out)-1]
			}
			if last {
				out = append(out, "")
			}
		default:
			out = append(out, seg)
		}
	}
	return strings.Join(out, "/")
}

func upperPercentEscapes(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	b := []byte(s)
	for i := 0; i+2 < len(b); i++ {
		if b[i] == '%' && isHex(b[i+1]) && isHex(b[i+2]) {
			b[i+1] = upperHex(b[i+1])
			b[i+2] = upperHex(b[i+2])
			i += 2
		}
	}
	return string(b)
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func upperHex(c byte) byte {
	if 'a' <= c && c <= 'f' {
		return c - 'a' + 'A'
	}
	return c
}
