package timeedit

import (
	"net/url"
	"strings"
)

const (
	feedExt = ".json"
	htmlExt = ".html"
)

// NormalizeURL rewrites a TimeEdit schedule URL so that it points at the JSON
// feed. Scheme, host, query and fragment are preserved; a URL that already
// ends in ".json" is returned unchanged.
//
//	https://cloud.timeedit.net/x/web/s/ri1.html -> .../ri1.json
//	https://cloud.timeedit.net/x/web/s/ri1      -> .../ri1.json
//	https://cloud.timeedit.net/x/web/s/ri1.ics  -> .../ri1.json
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", invalidURL("URL is empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", invalidURL("URL format is invalid: %v", err)
	}

	path := u.Path
	if path == "" || path == "/" {
		return "", invalidURL("URL path is empty")
	}

	normalized, err := normalizePath(path)
	if err != nil {
		return "", err
	}
	if normalized == path {
		return raw, nil
	}

	u.Path = normalized
	u.RawPath = ""
	return u.String(), nil
}

func normalizePath(path string) (string, error) {
	if strings.HasSuffix(path, feedExt) {
		return path, nil
	}
	if strings.HasSuffix(path, htmlExt) {
		return strings.TrimSuffix(path, htmlExt) + feedExt, nil
	}

	lastSlash := strings.LastIndex(path, "/")
	segment := path[lastSlash+1:]
	if strings.TrimSpace(segment) == "" {
		return "", invalidURL("URL path ends with '/'")
	}

	if dot := strings.LastIndex(segment, "."); dot >= 0 {
		return path[:lastSlash+1] + segment[:dot] + feedExt, nil
	}
	return path + feedExt, nil
}
