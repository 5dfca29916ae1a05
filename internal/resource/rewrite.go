// Package resource rewrites catalog resource documents that point at tapis:// URLs.
package resource

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"tapis-file-proxy/internal/config"
)

// Scheme is the URL prefix identifying Tapis-hosted files.
const Scheme = "tapis://"

// RoutePrefix is the local route that serves Tapis files.
const RoutePrefix = "/tapis-file/"

// OriginalURLField holds the pre-rewrite URL on a shown resource.
const OriginalURLField = "tapis_original_url"

var (
	// ErrInvalidTapisURL is returned for "tapis://" with no path after it.
	ErrInvalidTapisURL = errors.New("invalid tapis:// URL format")
	// ErrInvalidDocument is returned when a resource body is not a JSON object.
	ErrInvalidDocument = errors.New("resource document must be a JSON object")
)

// IsTapisURL reports whether s uses the tapis:// scheme.
func IsTapisURL(s string) bool {
	return strings.HasPrefix(s, Scheme)
}

// Rewriter maps tapis:// URLs onto this proxy's file route.
type Rewriter struct {
	publicURL string
}

// NewRewriter creates a Rewriter. Links are absolute when server.public_url
// is set and root-relative otherwise.
func NewRewriter(cfg *config.Config) *Rewriter {
	return &Rewriter{publicURL: strings.TrimRight(cfg.Server.PublicURL, "/")}
}

// DownloadURL converts a tapis:// URL into the proxy download URL.
// Other URLs are returned unchanged.
func (r *Rewriter) DownloadURL(s string) string {
	if !IsTapisURL(s) {
		return s
	}
	return r.publicURL + RoutePrefix + escapePath(strings.TrimPrefix(s, Scheme))
}

// ViewURL returns the URL used to view a file inline. It is the download URL.
func (r *Rewriter) ViewURL(s string) string {
	return r.DownloadURL(s)
}

// Show rewrites the "url" field of a resource document for display and keeps
// the original under OriginalURLField. Documents without a tapis:// URL are
// returned as is. All other fields are left untouched.
func (r *Rewriter) Show(doc []byte) ([]byte, error) {
	if !gjson.ValidBytes(doc) || !gjson.ParseBytes(doc).IsObject() {
		return nil, ErrInvalidDocument
	}
	orig := gjson.GetBytes(doc, "url")
	if orig.Type != gjson.String || !IsTapisURL(orig.Str) {
		return doc, nil
	}

	out, err := sjson.SetBytes(doc, "url", r.DownloadURL(orig.Str))
	if err != nil {
		return nil, fmt.Errorf("set url: %w", err)
	}
	out, err = sjson.SetBytes(out, OriginalURLField, orig.Str)
	if err != nil {
		return nil, fmt.Errorf("set %s: %w", OriginalURLField, err)
	}
	return out, nil
}

// Validate checks a resource document on create or update: a tapis:// URL
// must carry a path.
func Validate(doc []byte) error {
	if !gjson.ValidBytes(doc) || !gjson.ParseBytes(doc).IsObject() {
		return ErrInvalidDocument
	}
	u := gjson.GetBytes(doc, "url").String()
	if IsTapisURL(u) && strings.TrimPrefix(u, Scheme) == "" {
		return ErrInvalidTapisURL
	}
	return nil
}

// escapePath percent-encodes each segment of p, keeping the slashes.
func escapePath(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}
