// Package model defines shared types for the proxy.
package model

import (
	"io"
	"net/http"
)

// FileInfo is the descriptor returned by the Tapis file-ops endpoint.
type FileInfo struct {
	MimeType          string
	Type              string
	Owner             string
	Group             string
	NativePermissions string
	URL               string
	LastModified      string
	Name              string
	Path              string
	Size              int64
}

// UpstreamResponse is a raw Tapis response. Body is unread.
type UpstreamResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// FileStream is a file ready to be relayed to the client.
// ContentLength is -1 when the upstream did not report one.
type FileStream struct {
	Path          string
	Filename      string
	ContentType   string
	ContentLength int64
	Info          *FileInfo
	Body          io.ReadCloser
}
