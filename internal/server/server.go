package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"onepager/internal/domain"
	"onepager/internal/engine"
	"onepager/internal/repo"
	"onepager/internal/scoring"
	"onepager/internal/templates"
	"onepager/internal/workflow"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	ActorID  string
	Logger   *slog.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"validation_failed"`
	Message string         `json:"message" example:"Please paste the AI response"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the One-Pager API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	actorID := cfg.ActorID
	if actorID == "" {
		actorID = "api"
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors are the caller's fault, not a rejected phase.
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(logger))
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	hcfg := huma.DefaultConfig("One-Pager API", "1.0.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	h := handlers{e: cfg.Engine, actorID: actorID}
	registerDocs(router, basePath)
	registerHealth(group)
	registerPhases(group)
	registerStarters(group)
	h.registerProjects(group)
	h.registerWorkflow(group)
	h.registerScoring(group)
	h.registerEvents(group)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

// handlers carries what every project route needs.
type handlers struct {
	e       engine.Engine
	actorID string
}

// requestLogger logs 5xx responses with the request line.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			status := ww.Status()
			attrs := []any{"method", r.Method, "path", r.URL.Path, "status", status, "duration", time.Since(start)}
			if status >= http.StatusInternalServerError {
				logger.Error("request failed", attrs...)
				return
			}
			logger.Debug("request", attrs...)
		})
	}
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var verr *engine.ValidationError
	if errors.As(err, &verr) {
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", verr.Message, nil)
	}
	var rerr *templates.RetrievalError
	if errors.As(err, &rerr) {
		return newAPIError(http.StatusBadGateway, "template_unavailable", err.Error(), map[string]any{"phase": rerr.Phase})
	}
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, workflow.ErrWorkflowComplete), errors.Is(err, engine.ErrAtFirstPhase):
		return newAPIError(http.StatusConflict, "conflict", err.Error(), nil)
	case errors.Is(err, workflow.ErrInvalidPhase):
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusBadGateway:
		return "template_unavailable"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>One-Pager API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerPhases(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-phases",
		Method:      http.MethodGet,
		Path:        "/phases",
		Summary:     "List workflow phases",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []workflow.Metadata `json:"body"`
	}, error) {
		return &struct {
			Body []workflow.Metadata `json:"body"`
		}{Body: workflow.AllPhases()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-phase",
		Method:      http.MethodGet,
		Path:        "/phases/{phase}",
		Summary:     "Get phase metadata",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Phase int `path:"phase"`
	}) (*struct {
		Body workflow.Metadata `json:"body"`
	}, error) {
		meta, ok := workflow.PhaseMetadata(input.Phase)
		if !ok {
			return nil, newAPIError(http.StatusNotFound, "not_found", fmt.Sprintf("phase %d does not exist", input.Phase), map[string]any{"phase": input.Phase})
		}
		return &struct {
			Body workflow.Metadata `json:"body"`
		}{Body: meta}, nil
	})
}

func registerStarters(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-starters",
		Method:      http.MethodGet,
		Path:        "/starters",
		Summary:     "List document starters",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []templates.Starter `json:"body"`
	}, error) {
		items, err := templates.Starters()
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []templates.Starter `json:"body"`
		}{Body: items}, nil
	})
}

type projectPath struct {
	ProjectID string `path:"project_id"`
}

type projectOutput struct {
	Body ProjectResponse `json:"body"`
}

func (h handlers) registerProjects(api huma.API) {
	e := h.e
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*projectOutput, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		opts := engine.CreateOptions{
			Title:    input.Body.Title,
			Problems: input.Body.Problems,
			Context:  input.Body.Context,
			Starter:  input.Body.Starter,
			ActorID:  h.actorID,
		}
		if input.Body.FormData != nil {
			opts.Form = *input.Body.FormData
		}
		p, err := e.CreateProject(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &projectOutput{Body: projectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []ProjectResponse `json:"body"`
	}, error) {
		items, err := e.ListProjects(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ProjectResponse `json:"body"`
		}{Body: mapProjects(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}",
		Summary:     "Get project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *projectPath) (*projectOutput, error) {
		p, err := e.GetProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &projectOutput{Body: projectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-project",
		Method:      http.MethodPatch,
		Path:        "/projects/{project_id}",
		Summary:     "Update title, problems or context",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ProjectID string               `path:"project_id"`
		Body      UpdateProjectRequest `json:"body"`
	}) (*projectOutput, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		p, err := e.UpdateProject(ctx, engine.UpdateOptions{
			ID:       input.ProjectID,
			Title:    input.Body.Title,
			Problems: input.Body.Problems,
			Context:  input.Body.Context,
			ActorID:  h.actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &projectOutput{Body: projectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-project",
		Method:        http.MethodDelete,
		Path:          "/projects/{project_id}",
		Summary:       "Delete project",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *projectPath) (*struct{}, error) {
		if err := e.DeleteProject(ctx, input.ProjectID, h.actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-form",
		Method:      http.MethodPatch,
		Path:        "/projects/{project_id}/form",
		Summary:     "Update form fields",
		Description: "Only the fields present in the body change.",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string           `path:"project_id"`
		Body      domain.FormPatch `json:"body"`
	}) (*projectOutput, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		p, err := e.UpdateForm(ctx, input.ProjectID, input.Body, h.actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &projectOutput{Body: projectResponse(p)}, nil
	})
}

func (h handlers) registerWorkflow(api huma.API) {
	e := h.e
	huma.Register(api, huma.Operation{
		OperationID: "get-current-phase",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/phase",
		Summary:     "Get the active phase",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *projectPath) (*struct {
		Body PhaseStateResponse `json:"body"`
	}, error) {
		p, err := e.GetProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PhaseStateResponse `json:"body"`
		}{Body: phaseStateResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "generate-prompt",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/prompt",
		Summary:     "Generate the prompt for the active phase",
		Errors:      []int{http.StatusNotFound, http.StatusConflict, http.StatusBadGateway},
	}, func(ctx context.Context, input *projectPath) (*struct {
		Body PromptResponse `json:"body"`
	}, error) {
		_, prompt, err := e.GeneratePrompt(ctx, input.ProjectID, h.actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PromptResponse `json:"body"`
		}{Body: promptResponse(prompt)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "save-response",
		Method:      http.MethodPut,
		Path:        "/projects/{project_id}/response",
		Summary:     "Save the AI response for the active phase",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ProjectID string              `path:"project_id"`
		Body      SaveResponseRequest `json:"body"`
	}) (*projectOutput, error) {
		p, err := e.SaveResponse(ctx, input.ProjectID, input.Body.Response, h.actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &projectOutput{Body: projectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "validate-phase",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/validate",
		Summary:     "Check whether the active phase may advance",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *projectPath) (*struct {
		Body workflow.Validation `json:"body"`
	}, error) {
		v, err := e.Validate(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body workflow.Validation `json:"body"`
		}{Body: v}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "advance-phase",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/advance",
		Summary:     "Validate and advance to the next phase",
		Description: "Advancing a complete project is a no-op: 200 with advanced=false.",
		Errors:      []int{http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *projectPath) (*struct {
		Body AdvanceResponse `json:"body"`
	}, error) {
		p, advanced, err := e.Advance(ctx, input.ProjectID, h.actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AdvanceResponse `json:"body"`
		}{Body: AdvanceResponse{ProjectResponse: projectResponse(p), Advanced: advanced}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "previous-phase",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/back",
		Summary:     "Go back one phase",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *projectPath) (*projectOutput, error) {
		p, err := e.Back(ctx, input.ProjectID, h.actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &projectOutput{Body: projectResponse(p)}, nil
	})
}

func (h handlers) registerScoring(api huma.API) {
	e := h.e
	huma.Register(api, huma.Operation{
		OperationID: "score-project",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/score",
		Summary:     "Score the project's final document",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *projectPath) (*struct {
		Body ScoreResponse `json:"body"`
	}, error) {
		res, err := e.Score(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ScoreResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "export-project",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/export",
		Summary:     "Export the final markdown",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *projectPath) (*struct {
		Body ExportResponse `json:"body"`
	}, error) {
		exp, err := e.Export(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ExportResponse `json:"body"`
		}{Body: exp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "score-text",
		Method:      http.MethodPost,
		Path:        "/score",
		Summary:     "Score arbitrary markdown",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body ScoreRequest `json:"body"`
	}) (*struct {
		Body ScoreResponse `json:"body"`
	}, error) {
		return &struct {
			Body ScoreResponse `json:"body"`
		}{Body: e.ScoreText(input.Body.Text)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "score-prompt",
		Method:      http.MethodPost,
		Path:        "/score/prompt",
		Summary:     "Build an LLM scoring, critique or rewrite prompt",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body ScorePromptRequest `json:"body"`
	}) (*struct {
		Body ScorePromptResponse `json:"body"`
	}, error) {
		kind := input.Body.Kind
		if kind == "" {
			kind = "score"
		}
		var prompt string
		switch kind {
		case "score":
			prompt = scoring.ScoringPrompt(input.Body.Text)
		case "critique":
			prompt = scoring.CritiquePrompt(input.Body.Text, e.ScoreText(input.Body.Text))
		case "rewrite":
			prompt = scoring.RewritePrompt(input.Body.Text, e.ScoreText(input.Body.Text))
		default:
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "kind must be score, critique or rewrite", map[string]any{"kind": kind})
		}
		return &struct {
			Body ScorePromptResponse `json:"body"`
		}{Body: ScorePromptResponse{Kind: kind, Prompt: prompt}}, nil
	})
}

func (h handlers) registerEvents(api huma.API) {
	e := h.e
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/events",
		Summary:     "List recent events",
		Description: "Events of deleted projects remain listed; unknown ids are 404.",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Type      string `query:"type"`
		Limit     int    `query:"limit" default:"50"`
		Cursor    string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := e.ProjectEvents(ctx, input.ProjectID, input.Type, cursorID, limit+1)
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			resp.NextCursor = fmt.Sprintf("%d", items[limit-1].ID)
			items = items[:limit]
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	req, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || req == nil {
		return nil
	}
	data, _ := io.ReadAll(req.Body)
	return data
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}
