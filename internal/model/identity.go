package model

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var trackingParams = []string{"gclid", "fbclid", "msclkid"}

// NormalizeText lower-cases s, folds accents, replaces punctuation with spaces
// and collapses whitespace. Apostrophes are dropped so "Joe's" becomes "joes".
func NormalizeText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range strings.ToLower(folded) {
		switch {
		case r == '\'' || r == '’':
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// CleanURL normalizes a raw website cell into an absolute URL. It returns ""
// when the value is empty or has no host.
func CleanURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || strings.ContainsAny(u.Host, " \t") {
		return ""
	}
	if !strings.Contains(u.Hostname(), ".") && u.Hostname() != "localhost" && !isIPHost(u.Hostname()) {
		return ""
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.User = nil

	q := u.Query()
	for key := range q {
		if strings.HasPrefix(strings.ToLower(key), "utm_") {
			q.Del(key)
		}
	}
	for _, key := range trackingParams {
		q.Del(key)
	}
	u.RawQuery = q.Encode()

	if u.Path == "/" {
		u.Path = ""
	}
	u.Path = strings.TrimSuffix(u.Path, "/")

	return u.String()
}

func isIPHost(h string) bool {
	for _, r := range h {
		if !unicode.IsDigit(r) && r != '.' && r != ':' {
			return false
		}
	}
	return h != ""
}

// IdentityKey derives the resumption key for a lead: the cleaned website host
// and path when present, otherwise the normalized name and address.
func IdentityKey(website, name, address string) string {
	if clean := CleanURL(website); clean != "" {
		u, err := url.Parse(clean)
		if err == nil {
			host := strings.TrimPrefix(u.Host, "www.")
			return "url:" + host + strings.ToLower(u.Path)
		}
	}
	return "name:" + NormalizeText(name) + "|" + NormalizeText(address)
}

// RowHash fingerprints a mapped input row. Field order does not matter.
func RowHash(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{'='})
		h.Write([]byte(strings.TrimSpace(fields[k])))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ContentRef is an opaque handle for rendered content: its size and a short
// digest. The content itself is never stored.
func ContentRef(html string) string {
	sum := sha256.Sum256([]byte(html))
	return hex.EncodeToString(sum[:6]) + ":" + strconv.Itoa(len(html))
}
