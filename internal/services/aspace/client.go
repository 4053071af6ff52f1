package aspace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"avpackaging/internal/config"
	"avpackaging/internal/services"
)

const (
	sessionHeader  = "X-ArchivesSpace-Session"
	maxParentDepth = 32
	errorBodyLimit = 512
)

// HTTPDoer describes the HTTP client used by the catalog client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Date is an ArchivesSpace date subrecord.
type Date struct {
	DateType   string `json:"date_type"`
	Label      string `json:"label"`
	Begin      string `json:"begin"`
	End        string `json:"end"`
	Expression string `json:"expression"`
}

type ref struct {
	Ref string `json:"ref"`
}

type record struct {
	URI      string `json:"uri"`
	Dates    []Date `json:"dates"`
	Parent   *ref   `json:"parent"`
	Resource *ref   `json:"resource"`
}

// Client talks to the ArchivesSpace backend API.
type Client struct {
	baseURL    string
	username   string
	password   string
	repository string
	client     HTTPDoer

	mu      sync.Mutex
	session string
}

// New builds a client from configuration.
func New(cfg *config.Config) *Client {
	timeout := time.Duration(cfg.ArchivesSpace.TimeoutSeconds) * time.Second
	return NewClient(
		cfg.ArchivesSpace.BaseURL,
		cfg.ArchivesSpace.Username,
		cfg.ArchivesSpace.Password,
		cfg.ArchivesSpace.Repository,
		&http.Client{Timeout: timeout},
	)
}

// NewClient constructs a client with an explicit HTTP doer.
func NewClient(baseURL, username, password, repository string, doer HTTPDoer) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		username:   strings.TrimSpace(username),
		password:   password,
		repository: strings.TrimSpace(repository),
		client:     doer,
	}
}

// FindByRefID returns the URIs of every archival object in the configured
// repository whose ref_id matches refID.
func (c *Client) FindByRefID(ctx context.Context, refID string) ([]string, error) {
	query := url.Values{}
	query.Add("ref_id[]", refID)
	path := fmt.Sprintf("/repositories/%s/find_by_id/archival_objects", url.PathEscape(c.repository))

	var payload struct {
		ArchivalObjects []ref `json:"archival_objects"`
	}
	if err := c.getJSON(ctx, path, query, &payload); err != nil {
		return nil, err
	}
	uris := make([]string, 0, len(payload.ArchivalObjects))
	for _, obj := range payload.ArchivalObjects {
		if obj.Ref != "" {
			uris = append(uris, obj.Ref)
		}
	}
	return uris, nil
}

// ClosestDate returns the first date attached to uri or, failing that, to the
// nearest ancestor: parent archival objects first, then the resource.
func (c *Client) ClosestDate(ctx context.Context, uri string) (Date, error) {
	current := uri
	seen := make(map[string]struct{})
	for depth := 0; current != "" && depth < maxParentDepth; depth++ {
		if _, ok := seen[current]; ok {
			break
		}
		seen[current] = struct{}{}

		var rec record
		if err := c.getJSON(ctx, current, nil, &rec); err != nil {
			return Date{}, err
		}
		if len(rec.Dates) > 0 {
			return rec.Dates[0], nil
		}
		switch {
		case rec.Parent != nil && rec.Parent.Ref != "":
			current = rec.Parent.Ref
		case rec.Resource != nil && rec.Resource.Ref != "" && rec.Resource.Ref != current:
			current = rec.Resource.Ref
		default:
			current = ""
		}
	}
	return Date{}, services.Wrap(services.ErrNotFound, "resolving_metadata", "closest date", fmt.Sprintf("no dates found for %s or its ancestors", uri), nil)
}

// Ping verifies the backend answers, the credentials are accepted and the
// configured repository exists.
func (c *Client) Ping(ctx context.Context) error {
	var repo map[string]any
	return c.getJSON(ctx, "/repositories/"+url.PathEscape(c.repository), nil, &repo)
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	session, err := c.ensureSession(ctx)
	if err != nil {
		return err
	}
	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "resolving_metadata", "build request", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if session != "" {
		req.Header.Set(sessionHeader, session)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransfer, "resolving_metadata", "catalog request", path, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, path); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrTransfer, "resolving_metadata", "decode response", path, err)
	}
	return nil
}

func (c *Client) ensureSession(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != "" || c.username == "" {
		return c.session, nil
	}

	endpoint := fmt.Sprintf("%s/users/%s/login", c.baseURL, url.PathEscape(c.username))
	form := url.Values{"password": {c.password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "resolving_metadata", "build login request", "", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransfer, "resolving_metadata", "catalog login", "", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, "login"); err != nil {
		return "", err
	}

	var payload struct {
		Session string `json:"session"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", services.Wrap(services.ErrTransfer, "resolving_metadata", "decode login", "", err)
	}
	if payload.Session == "" {
		return "", services.Wrap(services.ErrConfiguration, "resolving_metadata", "catalog login", "empty session token", nil)
	}
	c.session = payload.Session
	return c.session, nil
}

func checkStatus(resp *http.Response, path string) error {
	if resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	detail := fmt.Sprintf("%s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	switch resp.StatusCode {
	case http.StatusNotFound:
		return services.Wrap(services.ErrNotFound, "resolving_metadata", "catalog request", detail, nil)
	case http.StatusUnauthorized, http.StatusForbidden:
		return services.Wrap(services.ErrConfiguration, "resolving_metadata", "catalog request", detail, nil)
	default:
		return services.Wrap(services.ErrTransfer, "resolving_metadata", "catalog request", detail, nil)
	}
}
