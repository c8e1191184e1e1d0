package broker

import (
	"net/url"
	"path"
	"strings"
)

// normalizeURI canonicalizes a document URI before it is used as a sync
// doc lookup key: percent-encoding is resolved and a bare filesystem path
// is promoted to a canonical file:// form. Two requests that spell the
// same document differently (encoded vs. not, relative vs. absolute)
// must collide on the same SyncDocState.
func normalizeURI(raw string) (string, error) {
	if raw == "" {
		return "", newErr(ErrSyncDocNotFound)
	}

	if !strings.Contains(raw, "://") {
		clean := path.Clean(raw)
		return "file://" + clean, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", newErr(ErrSyncDocNotFound)
	}
	u.Path = path.Clean(u.EscapedPath())
	decoded, err := url.PathUnescape(u.Path)
	if err != nil {
		return "", newErr(ErrSyncDocNotFound)
	}
	u.Path = decoded
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
