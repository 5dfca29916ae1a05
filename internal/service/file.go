// Package service implements the Tapis file-serving logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"tapis-file-proxy/internal/client"
	"tapis-file-proxy/internal/config"
	"tapis-file-proxy/internal/model"
)

// DefaultContentType is used when neither Tapis nor the file extension names a type.
const DefaultContentType = "application/octet-stream"

// maxInfoBytes caps how much of a file-ops response is read.
const maxInfoBytes = 1 << 20

var (
	// ErrMissingToken is returned when Open is called without a credential.
	ErrMissingToken = errors.New("tapis token required")
	// ErrInvalidPath is returned for empty paths or paths with dot segments.
	ErrInvalidPath = errors.New("invalid file path")
)

// UpstreamStatusError reports a non-200 answer from Tapis.
type UpstreamStatusError struct {
	Op         string
	StatusCode int
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("tapis %s returned status %d", e.Op, e.StatusCode)
}

// Upstream is the subset of the Tapis client the service needs.
type Upstream interface {
	FileInfo(ctx context.Context, filePath, token string) (*model.UpstreamResponse, error)
	FileContent(ctx context.Context, filePath, token string) (*model.UpstreamResponse, error)
}

// FileService opens Tapis files for streaming.
type FileService struct {
	upstream Upstream
	timeout  time.Duration
	logger   *slog.Logger
}

// NewFileService creates a FileService.
func NewFileService(c *client.TapisClient, cfg *config.Config, logger *slog.Logger) *FileService {
	return NewFileServiceWith(c, cfg, logger)
}

// NewFileServiceWith creates a FileService over any Upstream implementation.
func NewFileServiceWith(u Upstream, cfg *config.Config, logger *slog.Logger) *FileService {
	return &FileService{
		upstream: u,
		timeout:  time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second,
		logger:   logger.With("component", "file_service"),
	}
}

// Open fetches the descriptor and then the content of filePath.
// On success the caller owns FileStream.Body and must close it.
//
// The metadata call runs first; its failure prevents the content call.
func (s *FileService) Open(ctx context.Context, filePath, token string) (*model.FileStream, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	if err := ValidatePath(filePath); err != nil {
		return nil, err
	}

	info, err := s.fetchInfo(ctx, filePath, token)
	if err != nil {
		return nil, err
	}

	resp, err := s.upstream.FileContent(ctx, filePath, token)
	if err != nil {
		return nil, fmt.Errorf("fetch content: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, &UpstreamStatusError{Op: client.OpContent, StatusCode: resp.StatusCode}
	}

	filename := Filename(filePath)
	fs := &model.FileStream{
		Path:          filePath,
		Filename:      filename,
		ContentType:   ContentType(info, filename),
		ContentLength: contentLength(resp.Header),
		Info:          info,
		Body:          resp.Body,
	}

	s.logger.Debug("opened file",
		"path", filePath,
		"content_type", fs.ContentType,
		"content_length", fs.ContentLength,
		"owner", infoOwner(info),
	)
	return fs, nil
}

// fetchInfo runs the metadata call. A malformed descriptor is not an error:
// the content type then falls back to the file extension.
func (s *FileService) fetchInfo(ctx context.Context, filePath, token string) (*model.FileInfo, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	resp, err := s.upstream.FileInfo(ctx, filePath, token)
	if err != nil {
		return nil, fmt.Errorf("fetch file info: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamStatusError{Op: client.OpInfo, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxInfoBytes))
	if err != nil {
		return nil, fmt.Errorf("read file info: %w", err)
	}
	info, ok := ParseFileInfo(body)
	if !ok {
		s.logger.Debug("file info has no result entry", "path", filePath)
	}
	return info, nil
}

// ParseFileInfo reads the first entry of a file-ops "result" array.
// It returns nil, false when the body is not JSON or the array is empty.
func ParseFileInfo(body []byte) (*model.FileInfo, bool) {
	if !gjson.ValidBytes(body) {
		return nil, false
	}
	first := gjson.GetBytes(body, "result.0")
	if !first.IsObject() {
		return nil, false
	}
	return &model.FileInfo{
		MimeType:          first.Get("mimeType").String(),
		Type:              first.Get("type").String(),
		Owner:             first.Get("owner").String(),
		Group:             first.Get("group").String(),
		NativePermissions: first.Get("nativePermissions").String(),
		URL:               first.Get("url").String(),
		LastModified:      first.Get("lastModified").String(),
		Name:              first.Get("name").String(),
		Path:              first.Get("path").String(),
		Size:              first.Get("size").Int(),
	}, true
}

// ContentType picks the response type: Tapis mimeType, then the filename
// extension, then DefaultContentType.
func ContentType(info *model.FileInfo, filename string) string {
	if info != nil && strings.TrimSpace(info.MimeType) != "" {
		return info.MimeType
	}
	if ext := path.Ext(filename); ext != "" {
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
	}
	return DefaultContentType
}

// Filename returns the last token of filePath split on "/".
func Filename(filePath string) string {
	i := strings.LastIndexByte(filePath, '/')
	return filePath[i+1:]
}

// ValidatePath rejects empty paths and paths containing "." or ".." segments.
func ValidatePath(filePath string) error {
	trimmed := strings.Trim(filePath, "/")
	if trimmed == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	for _, seg := range strings.Split(trimmed, "/") {
		if seg == "." || seg == ".." {
			return fmt.Errorf("%w: dot segment in %q", ErrInvalidPath, filePath)
		}
	}
	return nil
}

// contentLength returns the upstream Content-Length, or -1 when absent or unparsable.
func contentLength(h http.Header) int64 {
	v := h.Get("Content-Length")
	if v == "" {
		return -1
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return -1
	}
	return n
}

func infoOwner(info *model.FileInfo) string {
	if info == nil {
		return ""
	}
	return info.Owner
}
