package bingx

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// Params is the stringified parameter set of one request.
type Params map[string]string

func (p Params) clone() Params {
	out := make(Params, len(p)+2)
	for k, v := range p {
		out[k] = v
	}
	return out
}

// canonicalQuery renders params as key-sorted key=value pairs joined by '&'.
// Empty values are dropped. The result is both the HMAC payload and the
// query/body that goes on the wire, so the two can never disagree.
func canonicalQuery(params Params) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(escapeValue(params[k]))
	}
	return b.String()
}

// escapeValue percent-encodes like encodeURIComponent: space is %20, not '+'.
func escapeValue(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}

func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Sign returns the lowercase hex HMAC-SHA256 of the canonical form of params.
func Sign(secret string, params Params) string {
	return sign(secret, canonicalQuery(params))
}
