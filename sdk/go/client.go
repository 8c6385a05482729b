package onepagersdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal One-Pager HTTP API client.
type Client struct {
	BaseURL    string
	BasePath   string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v1",
		Timeout:  10 * time.Second,
	}
}

// FormData mirrors the project form.
type FormData struct {
	ProjectName        string `json:"projectName,omitempty"`
	ProblemStatement   string `json:"problemStatement,omitempty"`
	CostOfDoingNothing string `json:"costOfDoingNothing,omitempty"`
	ProposedSolution   string `json:"proposedSolution,omitempty"`
	KeyGoals           string `json:"keyGoals,omitempty"`
	ScopeInScope       string `json:"scopeInScope,omitempty"`
	ScopeOutOfScope    string `json:"scopeOutOfScope,omitempty"`
	SuccessMetrics     string `json:"successMetrics,omitempty"`
	KeyStakeholders    string `json:"keyStakeholders,omitempty"`
	TimelineEstimate   string `json:"timelineEstimate,omitempty"`
	Context            string `json:"context,omitempty"`
}

type PhaseRecord struct {
	Prompt    string `json:"prompt"`
	Response  string `json:"response"`
	Completed bool   `json:"completed"`
}

// Project is the API project model.
type Project struct {
	ID           string                 `json:"id"`
	Title        string                 `json:"title"`
	Problems     string                 `json:"problems"`
	Context      string                 `json:"context"`
	Phase        int                    `json:"phase"`
	CurrentPhase int                    `json:"currentPhase"`
	FormData     FormData               `json:"formData"`
	Phases       map[string]PhaseRecord `json:"phases"`
	Progress     int                    `json:"progress"`
	IsComplete   bool                   `json:"isComplete"`
	CreatedAt    string                 `json:"createdAt"`
	UpdatedAt    string                 `json:"updatedAt"`
}

// CreateProject holds the create request. Starter names a built-in form
// preset.
type CreateProject struct {
	Title    string    `json:"title,omitempty"`
	Problems string    `json:"problems,omitempty"`
	Context  string    `json:"context,omitempty"`
	Starter  string    `json:"starter,omitempty"`
	FormData *FormData `json:"formData,omitempty"`
}

type Prompt struct {
	Phase   int      `json:"phase"`
	Prompt  string   `json:"prompt"`
	Dropped []string `json:"dropped"`
	ChatURL string   `json:"chat_url"`
}

type Validation struct {
	Valid bool   `json:"valid"`
	Error string `json:"error"`
}

type Dimension struct {
	Score     int      `json:"score"`
	MaxScore  int      `json:"max_score"`
	Issues    []string `json:"issues"`
	Strengths []string `json:"strengths"`
}

// Score is a rubric result (partial).
type Score struct {
	Total          int       `json:"total"`
	Label          string    `json:"label"`
	Color          string    `json:"color"`
	ProblemClarity Dimension `json:"problem_clarity"`
	Solution       Dimension `json:"solution"`
	Scope          Dimension `json:"scope"`
	Completeness   Dimension `json:"completeness"`
	Notes          []string  `json:"notes"`
}

type Export struct {
	Filename string `json:"filename"`
	Markdown string `json:"markdown"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	ProjectID  string         `json:"project_id"`
	EntityID   string         `json:"entity_id"`
	EntityKind string         `json:"entity_kind"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// APIError wraps non-2xx responses. Code is the error code from the
// response envelope when one was sent.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error: status=%d code=%s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// IsStatus reports whether err is an *APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

func (c *Client) CreateProject(ctx context.Context, req CreateProject) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodPost, "projects", req, &resp)
	return resp, err
}

func (c *Client) GetProject(ctx context.Context, id string) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodGet, c.projectPath(id, ""), nil, &resp)
	return resp, err
}

func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var resp []Project
	err := c.do(ctx, http.MethodGet, "projects", nil, &resp)
	return resp, err
}

func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, c.projectPath(id, ""), nil, nil)
}

// UpdateForm sends a partial form update; keys absent from fields are kept.
func (c *Client) UpdateForm(ctx context.Context, id string, fields map[string]string) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodPatch, c.projectPath(id, "form"), fields, &resp)
	return resp, err
}

// GeneratePrompt renders and stores the active phase prompt.
func (c *Client) GeneratePrompt(ctx context.Context, id string) (Prompt, error) {
	var resp Prompt
	err := c.do(ctx, http.MethodPost, c.projectPath(id, "prompt"), nil, &resp)
	return resp, err
}

// SaveResponse stores the pasted AI response for the active phase.
func (c *Client) SaveResponse(ctx context.Context, id, response string) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodPut, c.projectPath(id, "response"), map[string]string{"response": response}, &resp)
	return resp, err
}

func (c *Client) Validate(ctx context.Context, id string) (Validation, error) {
	var resp Validation
	err := c.do(ctx, http.MethodPost, c.projectPath(id, "validate"), nil, &resp)
	return resp, err
}

// AdvanceResult is the project after an advance. Advanced is false when the
// project was already complete.
type AdvanceResult struct {
	Project
	Advanced bool `json:"advanced"`
}

func (c *Client) Advance(ctx context.Context, id string) (AdvanceResult, error) {
	var resp AdvanceResult
	err := c.do(ctx, http.MethodPost, c.projectPath(id, "advance"), nil, &resp)
	return resp, err
}

func (c *Client) Back(ctx context.Context, id string) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodPost, c.projectPath(id, "back"), nil, &resp)
	return resp, err
}

// ScoreProject scores the project's final document.
func (c *Client) ScoreProject(ctx context.Context, id string) (Score, error) {
	var resp Score
	err := c.do(ctx, http.MethodGet, c.projectPath(id, "score"), nil, &resp)
	return resp, err
}

// ScoreText scores arbitrary markdown.
func (c *Client) ScoreText(ctx context.Context, text string) (Score, error) {
	var resp Score
	err := c.do(ctx, http.MethodPost, "score", map[string]string{"text": text}, &resp)
	return resp, err
}

func (c *Client) Export(ctx context.Context, id string) (Export, error) {
	var resp Export
	err := c.do(ctx, http.MethodGet, c.projectPath(id, "export"), nil, &resp)
	return resp, err
}

// EventsPage returns a paginated event listing for a project.
func (c *Client) EventsPage(ctx context.Context, id string, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := c.projectPath(id, "events")
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var reader io.Reader
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
		reader = &buf
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) projectPath(id, sub string) string {
	p := "projects/" + url.PathEscape(id)
	if sub != "" {
		p += "/" + sub
	}
	return p
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.Trim(c.BasePath, "/")
}
