package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/userimport/modules/userimport/domain/payload"
	"github.com/iota-uz/userimport/modules/userimport/domain/role"
	"github.com/iota-uz/userimport/pkg/httpapi"
	"github.com/iota-uz/userimport/pkg/logging"
)

const (
	DefaultRolesPath     = "/roles"
	DefaultUsersBulkPath = "/users/bulk"
	DefaultTimeout       = 30 * time.Second

	// maxErrorBody caps how much of a non-JSON error body ends up in messages.
	maxErrorBody = 512
)

var ErrInvalidBaseURL = errors.New("invalid base url")

// RejectedError is a non-2xx answer from the backend.
type RejectedError struct {
	Status  int
	Code    string
	Message string
}

func (e *RejectedError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("http status=%d: %s (%s)", e.Status, e.Message, e.Code)
	}
	return fmt.Sprintf("http status=%d: %s", e.Status, e.Message)
}

// BackendMessage is the human readable reason reported by the backend.
func (e *RejectedError) BackendMessage() string {
	return e.Message
}

type Options struct {
	BaseURL       string
	Authorization string
	RolesPath     string
	// RolesPublic sends the roles request without the Authorization header.
	RolesPublic     bool
	UsersBulkPath   string
	Timeout         time.Duration
	RequestIDHeader string
	HTTPClient      *http.Client
	Logger          *logrus.Entry
}

// Client talks to the user management API: the roles listing and the
// bulk-create endpoint.
type Client struct {
	baseURL         *url.URL
	authorization   string
	rolesPath       string
	rolesPublic     bool
	usersBulkPath   string
	requestIDHeader string
	httpClient      *http.Client
	log             *logrus.Entry
}

func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimSpace(opts.BaseURL)
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Wrap(ErrInvalidBaseURL, strconv.Quote(baseURL))
	}
	if opts.RolesPath == "" {
		opts.RolesPath = DefaultRolesPath
	}
	if opts.UsersBulkPath == "" {
		opts.UsersBulkPath = DefaultUsersBulkPath
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &Client{
		baseURL:         u,
		authorization:   strings.TrimSpace(opts.Authorization),
		rolesPath:       opts.RolesPath,
		rolesPublic:     opts.RolesPublic,
		usersBulkPath:   opts.UsersBulkPath,
		requestIDHeader: opts.RequestIDHeader,
		httpClient:      opts.HTTPClient,
		log:             opts.Logger,
	}, nil
}

// ListRoles fetches every role. The body may be a bare array or wrapped in
// {"data": [...]}, and ids may be strings or numbers.
func (c *Client) ListRoles(ctx context.Context) ([]role.Role, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, c.rolesPath, !c.rolesPublic, nil, &raw); err != nil {
		return nil, errors.Wrap(err, "list roles")
	}
	roles, err := decodeRoles(raw)
	if err != nil {
		return nil, errors.Wrap(err, "decode roles")
	}
	return roles, nil
}

// BulkCreate posts all users in a single request.
func (c *Client) BulkCreate(ctx context.Context, users []payload.User) error {
	body := payload.BulkCreateRequest{Users: users}
	if err := c.doJSON(ctx, http.MethodPost, c.usersBulkPath, true, body, nil); err != nil {
		return errors.Wrap(err, "bulk create users")
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, authorize bool, reqBody, out any) error {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")

	var body io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return errors.Wrap(err, "json marshal request")
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return errors.Wrap(err, "http request")
	}
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.NewString()
	if c.requestIDHeader != "" {
		req.Header.Set(c.requestIDHeader, requestID)
	}
	if authorize && c.authorization != "" {
		req.Header.Set("Authorization", c.authorization)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "http do")
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "http read")
	}

	log := c.log.WithFields(logrus.Fields{
		"method":     method,
		"path":       u.Path,
		"status":     resp.StatusCode,
		"request_id": requestID,
		"elapsed_ms": time.Since(started).Milliseconds(),
	})
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn("user_import.api.rejected")
		return rejected(resp.StatusCode, respBody)
	}
	log.Debug("user_import.api.ok")

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.Wrap(err, "json unmarshal response")
	}
	return nil
}

func rejected(status int, body []byte) *RejectedError {
	var env httpapi.ErrorEnvelope
	if err := json.Unmarshal(body, &env); err == nil {
		if msg := strings.TrimSpace(env.Text()); msg != "" {
			return &RejectedError{Status: status, Code: strings.TrimSpace(env.Code), Message: msg}
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &RejectedError{Status: status, Message: msg}
}

// flexibleID accepts both "r1" and 42.
type flexibleID string

func (id *flexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.Errorf("role id must be a string or a number, got %s", string(b))
	}
	*id = flexibleID(n.String())
	return nil
}

type wireRole struct {
	ID   flexibleID `json:"id"`
	Name string     `json:"name"`
}

func decodeRoles(raw json.RawMessage) ([]role.Role, error) {
	raw = bytes.TrimSpace(raw)
	var list []wireRole
	switch {
	case len(raw) == 0:
		return nil, errors.New("empty roles response")
	case raw[0] == '[':
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, err
		}
	case raw[0] == '{':
		var wrapped struct {
			Data *[]wireRole `json:"data"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, err
		}
		if wrapped.Data == nil {
			return nil, errors.New(`roles response has no "data" array`)
		}
		list = *wrapped.Data
	default:
		return nil, errors.Errorf("unexpected roles response %.40q", string(raw))
	}

	roles := make([]role.Role, 0, len(list))
	for _, r := range list {
		roles = append(roles, role.Role{ID: string(r.ID), Name: r.Name})
	}
	return roles, nil
}
