package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/vaultcli/internal/client/models"
	"github.com/dmitrijs2005/vaultcli/internal/common"
	"github.com/dmitrijs2005/vaultcli/internal/logging"
)

const maxErrorBody = 4 << 10

// Options configures an HTTPClient.
type Options struct {
	// BaseURL is the API root; every endpoint is resolved against it.
	BaseURL string
	// Timeout bounds calls whose response is fully read before returning.
	// Streaming calls (Upload, Download) rely on the caller's context.
	Timeout time.Duration
	// Cookies persists the session credential across runs. Optional.
	Cookies CookieStore
	// Transport overrides the underlying round tripper (tests).
	Transport http.RoundTripper
	Logger    logging.Logger
}

// HTTPClient implements Client over net/http with a cookie jar.
type HTTPClient struct {
	base    *url.URL
	timeout time.Duration
	cookies CookieStore
	log     logging.Logger
	jar     *sessionJar

	// http carries the session cookie; anon is used for link-based calls
	// that must not depend on the session.
	http *http.Client
	anon *http.Client
}

// NewHTTPClient builds a client for opts.BaseURL and restores persisted cookies.
func NewHTTPClient(ctx context.Context, opts Options) (*HTTPClient, error) {
	base, err := url.Parse(common.WithTrailingSlash(opts.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", opts.BaseURL)
	}

	log := opts.Logger
	if log == nil {
		log = logging.NopLogger{}
	}
	log = log.With("component", "api")
	transport := newLoggingTransport(opts.Transport, log)

	jar := newSessionJar()
	c := &HTTPClient{
		base:    base,
		timeout: opts.Timeout,
		cookies: opts.Cookies,
		log:     log,
		jar:     jar,
		http:    &http.Client{Transport: transport, Jar: jar},
		anon:    &http.Client{Transport: transport},
	}

	if err := restoreCookies(ctx, c.cookies, c.jar, c.base); err != nil {
		log.Warn(ctx, "could not restore session", "error", err)
	}
	return c, nil
}

func (c *HTTPClient) endpoint(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return c.base.String() + strings.Join(escaped, "/")
}

func (c *HTTPClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// do sends the request and maps transport failures and non-2xx statuses.
// On success the caller owns resp.Body.
func (c *HTTPClient) do(hc *http.Client, req *http.Request) (*http.Response, error) {
	resp, err := hc.Do(req)
	if hc.Jar != nil {
		if perr := persistCookies(req.Context(), c.cookies, hc.Jar, c.base); perr != nil {
			c.log.Warn(req.Context(), "could not persist session", "error", perr)
		}
	}
	if err != nil {
		return nil, mapTransportError(err)
	}
	if err := mapStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method string, target string, in, out any) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(c.http, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return nil
}

func (c *HTTPClient) Account(ctx context.Context) (*models.User, error) {
	var u models.User
	if err := c.doJSON(ctx, http.MethodGet, c.endpoint("account"), nil, &u); err != nil {
		if errors.Is(err, ErrUnauthorized) && len(c.jar.Cookies(c.base)) > 0 {
			c.log.Info(ctx, "session rejected by server, dropping it")
			c.forgetCredential(ctx)
		}
		return nil, err
	}
	return &u, nil
}

// forgetCredential empties the jar and the persisted copy.
func (c *HTTPClient) forgetCredential(ctx context.Context) {
	c.jar.Reset()
	if err := persistCookies(ctx, c.cookies, c.jar, c.base); err != nil {
		c.log.Warn(ctx, "could not clear persisted session", "error", err)
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *HTTPClient) Login(ctx context.Context, email string, password []byte) error {
	req := loginRequest{Email: email, Password: string(password)}
	return c.doJSON(ctx, http.MethodPost, c.endpoint("auth", "login"), req, nil)
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *HTTPClient) Register(ctx context.Context, username, email string, password []byte) error {
	req := registerRequest{Username: username, Email: email, Password: string(password)}
	return c.doJSON(ctx, http.MethodPost, c.endpoint("auth", "register"), req, nil)
}

// Logout ends the session server-side and always forgets the local
// credential, whatever the server answered.
func (c *HTTPClient) Logout(ctx context.Context) error {
	err := c.doJSON(ctx, http.MethodPost, c.endpoint("auth", "logout"), nil, nil)
	c.forgetCredential(ctx)
	return err
}

func (c *HTTPClient) Upload(ctx context.Context, name, mimeType string, content io.Reader) ([]models.UploadedFile, error) {
	req, err := c.multipartRequest(ctx, c.endpoint("upload"), "file", name, mimeType, content)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(c.http, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var files []models.UploadedFile
	if err := json.NewDecoder(resp.Body).Decode(&files); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return files, nil
}

func (c *HTTPClient) Delete(ctx context.Context, fileID string) error {
	return c.doJSON(ctx, http.MethodDelete, c.endpoint("delete", fileID), nil, nil)
}

func (c *HTTPClient) FileInfo(ctx context.Context, fileID string) (*models.FileInfo, error) {
	var info models.FileInfo
	if err := c.doJSON(ctx, http.MethodGet, c.endpoint("file", fileID), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

type downloadRequest struct {
	Key string `json:"key"`
}

// Download posts the fragment key in the request body and returns the file
// stream. It never puts the key in the URL and does not send the session
// cookie: downloads are link-based.
func (c *HTTPClient) Download(ctx context.Context, fileID, key string) (io.ReadCloser, error) {
	b, err := json.Marshal(downloadRequest{Key: key})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("download", fileID), bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(c.anon, req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *HTTPClient) Stats(ctx context.Context) (*models.Stats, error) {
	var s models.Stats
	if err := c.doJSON(ctx, http.MethodGet, c.endpoint("stats"), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *HTTPClient) UpdateUsername(ctx context.Context, username string) error {
	body := map[string]string{"username": username}
	return c.doJSON(ctx, http.MethodPost, c.endpoint("account", "username"), body, nil)
}

func (c *HTTPClient) UpdateAvatar(ctx context.Context, content io.Reader) error {
	req, err := c.multipartRequest(ctx, c.endpoint("account", "avatar"), "image", "avatar.png", "image/png", content)
	if err != nil {
		return err
	}
	resp, err := c.do(c.http, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Avatar streams the current profile picture and returns its media type.
// The caller closes the body.
func (c *HTTPClient) Avatar(ctx context.Context) (io.ReadCloser, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("account", "pfp"), nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.do(c.http, req)
	if err != nil {
		return nil, "", err
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

func (c *HTTPClient) HasCredential() bool {
	return hasSessionCookie(c.jar, c.base)
}

func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	c.anon.CloseIdleConnections()
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// multipartRequest streams content as a single multipart part through a pipe
// so large files are never buffered in memory.
func (c *HTTPClient) multipartRequest(ctx context.Context, target, field, name, mimeType string, content io.Reader) (*http.Request, error) {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(field), quoteEscaper.Replace(name)))
		h.Set("Content-Type", mimeType)

		part, err := mw.CreatePart(h)
		if err == nil {
			_, err = io.Copy(part, content)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, pr)
	if err != nil {
		pr.CloseWithError(err)
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req, nil
}

func mapTransportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func mapStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	se := &StatusError{StatusCode: resp.StatusCode, Message: readMessage(resp.Body)}
	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		se.kind = ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		se.kind = ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		se.kind = ErrConflict
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusUnprocessableEntity:
		se.kind = ErrRejected
	case resp.StatusCode >= 500:
		se.kind = ErrUnavailable
	}
	return se
}

// readMessage extracts the "message" field of a JSON error body, if any.
func readMessage(body io.Reader) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(body, maxErrorBody)).Decode(&payload); err != nil {
		return ""
	}
	return payload.Message
}
