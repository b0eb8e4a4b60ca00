package feed

import (
	"net/url"
	"strings"
)

// Tracking parameters stripped during identity key canonicalization.
var trackingParams = map[string]bool{
	"fbclid":      true,
	"gclid":       true,
	"igshid":      true,
	"mc_cid":      true,
	"mc_eid":      true,
	"ref":         true,
	"ref_src":     true,
	"yclid":       true,
	"_hsenc":      true,
	"_hsmi":       true,
	"mkt_tok":     true,
	"aff_id":      true,
	"affiliate":   true,
	"spm":         true,
	"share_token": true,
}

// IdentityKey canonicalizes an item link into a stable dedup key. The scheme
// and host are lowercased, the fragment is dropped and known tracking
// parameters are removed. When the link cannot be parsed the feed-provided
// GUID is used instead, so items without a usable URL still dedup.
func IdentityKey(link, guid string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return strings.TrimSpace(guid)
	}

	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		if guid != "" {
			return strings.TrimSpace(guid)
		}
		return link
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	query := u.Query()
	for param := range query {
		if trackingParams[param] || strings.HasPrefix(param, "utm_") {
			query.Del(param)
		}
	}
	u.RawQuery = query.Encode()

	if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	return u.String()
}
