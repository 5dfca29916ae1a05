package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"

	"tapis-file-proxy/internal/credential"
	"tapis-file-proxy/internal/middleware"
	"tapis-file-proxy/internal/model"
	"tapis-file-proxy/internal/service"
)

// chunkSize is the relay buffer size for file bodies.
const chunkSize = 8 * 1024

const (
	msgLoginRequired = "You must be logged in to access this resource. Please log in and try again."
	msgNotFound      = "The resource is not found. Please check the URL and try again. "
	msgUnauthorized  = "Unauthorized: No Tapis token found. Please authenticate with Tapis through the OAuth2 system."
	msgForbidden     = "Forbidden: You are not authorized to access this resource. Probably the resource is not public, please contact the owner."
	msgFetchFailed   = "Error fetching file from Tapis: "
	msgInvalidPath   = "Invalid file path."
	msgInternal      = "Internal server error"
)

var chunkPool = sync.Pool{
	New: func() any {
		b := make([]byte, chunkSize)
		return &b
	},
}

// FileHandler serves Tapis files under /tapis-file/.
type FileHandler struct {
	service *service.FileService
	chain   *credential.Chain
	logger  *slog.Logger
}

// NewFileHandler creates a FileHandler.
func NewFileHandler(svc *service.FileService, chain *credential.Chain, logger *slog.Logger) *FileHandler {
	return &FileHandler{
		service: svc,
		chain:   chain,
		logger:  logger.With("component", "file_handler"),
	}
}

// Serve resolves the caller's Tapis token, opens the file and relays it.
func (h *FileHandler) Serve(c echo.Context) (err error) {
	filePath := filePathParam(c)

	defer func() {
		if p := recover(); p != nil {
			h.logger.Error("panic serving file", "panic", p, "path", filePath)
			err = h.internalError(c)
		}
	}()

	res := h.chain.Resolve(c)
	if !res.Found() {
		h.logger.Info("no tapis credential", "path", filePath, "sources_tried", len(res.Attempts))
		return plain(c, http.StatusUnauthorized, msgLoginRequired)
	}
	c.Set(middleware.CredentialSourceKey, res.Source)

	fs, err := h.service.Open(c.Request().Context(), filePath, res.Token)
	if err != nil {
		return h.mapError(c, filePath, err)
	}
	defer func() { _ = fs.Body.Close() }()

	writeFileHeaders(c.Response().Header(), fs)
	c.Response().WriteHeader(http.StatusOK)

	// Once the status line is out, a failed read or write can only truncate
	// the body. The error is logged and the response left as is.
	if n, err := relay(c.Response(), fs.Body); err != nil {
		h.logger.Error("streaming file body",
			"err", err,
			"path", filePath,
			"bytes_sent", n,
		)
	}
	return nil
}

func (h *FileHandler) mapError(c echo.Context, filePath string, err error) error {
	var se *service.UpstreamStatusError
	switch {
	case errors.As(err, &se):
		h.logger.Warn("tapis refused file",
			"op", se.Op,
			"status", se.StatusCode,
			"path", filePath,
		)
		switch se.StatusCode {
		case http.StatusNotFound:
			return plain(c, http.StatusNotFound, msgNotFound+filePath)
		case http.StatusUnauthorized:
			return plain(c, http.StatusUnauthorized, msgUnauthorized)
		case http.StatusForbidden:
			return plain(c, http.StatusForbidden, msgForbidden)
		}
		status := se.StatusCode
		if status < http.StatusBadRequest || status > 599 {
			status = http.StatusBadGateway
		}
		return plain(c, status, msgFetchFailed+strconv.Itoa(se.StatusCode))
	case errors.Is(err, service.ErrInvalidPath):
		h.logger.Info("invalid file path", "path", filePath)
		return plain(c, http.StatusBadRequest, msgInvalidPath)
	case errors.Is(err, service.ErrMissingToken):
		return plain(c, http.StatusUnauthorized, msgLoginRequired)
	}

	h.logger.Error("serving file", "err", err, "path", filePath)
	return h.internalError(c)
}

// internalError writes the generic 500 unless the response is already underway.
func (h *FileHandler) internalError(c echo.Context) error {
	if c.Response().Committed {
		return nil
	}
	return plain(c, http.StatusInternalServerError, msgInternal)
}

func writeFileHeaders(hdr http.Header, fs *model.FileStream) {
	hdr.Set(echo.HeaderContentType, fs.ContentType)
	hdr.Set(echo.HeaderContentDisposition, contentDisposition(fs.Filename))
	if fs.ContentLength >= 0 {
		hdr.Set(echo.HeaderContentLength, strconv.FormatInt(fs.ContentLength, 10))
	}
}

// contentDisposition renders an inline disposition for name. Quotes and
// backslashes are escaped so the header stays well-formed.
func contentDisposition(name string) string {
	name = strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(name)
	return fmt.Sprintf(`inline; filename="%s"`, name)
}

// relay copies r to w in chunkSize pieces, flushing after each non-empty chunk.
func relay(w *echo.Response, r io.Reader) (int64, error) {
	bp := chunkPool.Get().(*[]byte)
	defer chunkPool.Put(bp)
	buf := *bp

	var written int64
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			m, werr := w.Write(buf[:n])
			written += int64(m)
			if werr != nil {
				return written, werr
			}
			w.Flush()
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}

// filePathParam returns the decoded path captured by the /tapis-file/* route.
func filePathParam(c echo.Context) string {
	p := c.Param("*")
	// Echo routes on the raw path when the request carried escapes.
	if c.Request().URL.RawPath == "" {
		return p
	}
	if dec, err := url.PathUnescape(p); err == nil {
		return dec
	}
	return p
}

func plain(c echo.Context, status int, msg string) error {
	return c.String(status, msg)
}
