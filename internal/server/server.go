package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/adeel99sa/ZephixPlatform-sub021/internal/domain"
	"github.com/adeel99sa/ZephixPlatform-sub021/internal/engine"
	"github.com/adeel99sa/ZephixPlatform-sub021/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"signal not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the required error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the risk API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the requested envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Zephix Risk API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerProjects(group, cfg.Engine)
	registerWorkItems(group, cfg.Engine)
	registerAllocations(group, cfg.Engine)
	registerScan(group, cfg.Engine)
	registerSignals(group, cfg.Engine)
	registerConflicts(group, cfg.Engine)
	registerRiskProfile(group, cfg.Engine)
	registerSweeps(group, cfg.Engine)
	registerMe(group)
	if cfg.Auth.EnableDevLogin {
		registerDevAuth(group, cfg.Auth)
	}
	registerOpenAPI(router, api, basePath)

	return router, nil
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
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "already resolved"):
		return newAPIError(http.StatusConflict, "already_resolved", msg, nil)
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") ||
		strings.Contains(lowered, "required") || strings.Contains(lowered, "must"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
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
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	publicPaths := map[string]bool{
		path.Join("/", basePath, "health"):         true,
		path.Join("/", basePath, "auth/dev/login"): true,
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if publicPaths[route] {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
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
    <title>Zephix Risk API Docs</title>
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
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
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

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.OrgID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "org_id is required", nil)
		}
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		p := domain.Project{
			ID:        uuid.New().String(),
			OrgID:     input.Body.OrgID,
			Name:      input.Body.Name,
			Status:    "active",
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		}
		if input.Body.ID != nil && *input.Body.ID != "" {
			p.ID = *input.Body.ID
		}
		if input.Body.StartDate != nil {
			p.StartDate = *input.Body.StartDate
		}
		if input.Body.EndDate != nil {
			p.EndDate = *input.Body.EndDate
		}
		if err := e.Repo.InsertProject(ctx, p); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Project `json:"body"`
	}, error) {
		items, err := e.Repo.ListProjects(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Project `json:"body"`
		}{Body: mapProjects(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}",
		Summary:     "Get project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		p, err := e.Repo.GetProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-project",
		Method:      http.MethodPatch,
		Path:        "/projects/{project_id}",
		Summary:     "Update project status",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string               `path:"project_id"`
		Body      UpdateProjectRequest `json:"body"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if err := e.Repo.UpdateProjectStatus(ctx, input.ProjectID, input.Body.Status); err != nil {
			return nil, handleError(err)
		}
		p, err := e.Repo.GetProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "upsert-project-budget",
		Method:      http.MethodPut,
		Path:        "/projects/{project_id}/budget",
		Summary:     "Set project budget figures",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string              `path:"project_id"`
		Body      UpsertBudgetRequest `json:"body"`
	}) (*struct {
		Body map[string]any `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.PlannedBudget < 0 || input.Body.ActualCost < 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "budget figures must not be negative", nil)
		}
		if _, err := e.Repo.GetProject(ctx, input.ProjectID); err != nil {
			return nil, handleError(err)
		}
		at := time.Now().UTC().Format(time.RFC3339)
		if err := e.Repo.UpsertProjectBudget(ctx, input.ProjectID, input.Body.PlannedBudget, input.Body.ActualCost, at); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]any `json:"body"`
		}{Body: map[string]any{
			"project_id":     input.ProjectID,
			"planned_budget": input.Body.PlannedBudget,
			"actual_cost":    input.Body.ActualCost,
		}}, nil
	})
}

func registerWorkItems(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-work-item",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/items",
		Summary:       "Create work item",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string                `path:"project_id"`
		Body      CreateWorkItemRequest `json:"body"`
	}) (*struct {
		Body domain.WorkItem `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.Title == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "title is required", nil)
		}
		if _, err := e.Repo.GetProject(ctx, input.ProjectID); err != nil {
			return nil, handleError(err)
		}
		now := time.Now().UTC().Format(time.RFC3339)
		w := domain.WorkItem{
			ID:           uuid.New().String(),
			ProjectID:    input.ProjectID,
			Title:        input.Body.Title,
			Type:         input.Body.Type,
			Status:       "planned",
			EffortPoints: input.Body.EffortPoints,
			PlannedEnd:   input.Body.PlannedEnd,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if input.Body.ID != nil && *input.Body.ID != "" {
			w.ID = *input.Body.ID
		}
		if input.Body.Status != nil {
			w.Status = *input.Body.Status
		}
		if err := e.Repo.InsertWorkItem(ctx, w); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.WorkItem `json:"body"`
		}{Body: w}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-work-items",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/items",
		Summary:     "List work items",
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Status    string `query:"status"`
	}) (*struct {
		Body []domain.WorkItem `json:"body"`
	}, error) {
		items, err := e.Repo.ListWorkItems(ctx, repo.WorkItemFilters{ProjectID: input.ProjectID, Status: input.Status})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.WorkItem `json:"body"`
		}{Body: mapWorkItems(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-work-item",
		Method:      http.MethodPatch,
		Path:        "/work-items/{item_id}",
		Summary:     "Update work item status",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ItemID string                `path:"item_id"`
		Body   UpdateWorkItemRequest `json:"body"`
	}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		at := time.Now().UTC().Format(time.RFC3339)
		if err := e.Repo.UpdateWorkItemStatus(ctx, input.ItemID, input.Body.Status, at); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"id": input.ItemID, "status": input.Body.Status}}, nil
	})
}

func registerAllocations(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-allocation",
		Method:        http.MethodPost,
		Path:          "/allocations",
		Summary:       "Create allocation with pre-commit capacity check",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateAllocationRequest `json:"body"`
	}) (*struct {
		Body domain.Allocation `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		a := domain.Allocation{
			ResourceID:  input.Body.ResourceID,
			ProjectID:   input.Body.ProjectID,
			TaskID:      input.Body.TaskID,
			StartDate:   input.Body.StartDate,
			EndDate:     input.Body.EndDate,
			Percent:     input.Body.Percent,
			HoursPerDay: input.Body.HoursPerDay,
		}
		saved, overloaded, err := e.CreateAllocation(ctx, a, input.Body.Force)
		if errors.Is(err, engine.ErrOverallocated) {
			return nil, newAPIError(http.StatusUnprocessableEntity, "allocation_conflict",
				"allocation would exceed capacity", map[string]any{
					"overloaded_days": mapOverloadedDays(overloaded),
				})
		}
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Allocation `json:"body"`
		}{Body: saved}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "check-allocation",
		Method:      http.MethodPost,
		Path:        "/allocations/check",
		Summary:     "Dry-run capacity check for a proposed allocation",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateAllocationRequest `json:"body"`
	}) (*struct {
		Body map[string]any `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		a := domain.Allocation{
			ResourceID: input.Body.ResourceID,
			ProjectID:  input.Body.ProjectID,
			StartDate:  input.Body.StartDate,
			EndDate:    input.Body.EndDate,
			Percent:    input.Body.Percent,
		}
		overloaded, err := e.CheckAllocation(ctx, a)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]any `json:"body"`
		}{Body: map[string]any{
			"ok":              len(overloaded) == 0,
			"overloaded_days": mapOverloadedDays(overloaded),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-allocations",
		Method:      http.MethodGet,
		Path:        "/allocations",
		Summary:     "List allocations by resource or project",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		ResourceID string `query:"resource_id"`
		ProjectID  string `query:"project_id"`
	}) (*struct {
		Body []domain.Allocation `json:"body"`
	}, error) {
		var items []domain.Allocation
		var err error
		switch {
		case input.ResourceID != "":
			items, err = e.Repo.ListAllocationsByResource(ctx, input.ResourceID)
		case input.ProjectID != "":
			items, err = e.Repo.ListAllocationsByProject(ctx, input.ProjectID)
		default:
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "resource_id or project_id query is required", nil)
		}
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Allocation `json:"body"`
		}{Body: mapAllocations(items)}, nil
	})
}

func registerScan(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "scan-project",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/scan",
		Summary:     "Run the risk rules against one project now",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body ScanResponse `json:"body"`
	}, error) {
		findings, err := e.ScanProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		signals, err := e.RecordFindings(ctx, findings)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ScanResponse `json:"body"`
		}{Body: ScanResponse{
			ProjectID: input.ProjectID,
			Signals:   mapSignals(signals),
		}}, nil
	})
}

func registerSignals(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-org-signals",
		Method:      http.MethodGet,
		Path:        "/organizations/{org_id}/signals",
		Summary:     "List risk signals for an organization",
	}, func(ctx context.Context, input *struct {
		OrgID     string `path:"org_id"`
		ProjectID string `query:"project_id"`
		Status    string `query:"status" enum:"unacknowledged,acknowledged,resolved,"`
		Type      string `query:"signal_type"`
		Active    bool   `query:"active"`
		Limit     int    `query:"limit"`
	}) (*struct {
		Body []SignalResponse `json:"body"`
	}, error) {
		if input.Active {
			items, err := e.Repo.ListActiveSignals(ctx, input.OrgID)
			if err != nil {
				return nil, handleError(err)
			}
			return &struct {
				Body []SignalResponse `json:"body"`
			}{Body: mapSignals(items)}, nil
		}
		items, err := e.Repo.ListSignals(ctx, repo.SignalFilters{
			OrgID:      input.OrgID,
			ProjectID:  input.ProjectID,
			Status:     input.Status,
			SignalType: input.Type,
			Limit:      normalizeLimit(input.Limit),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []SignalResponse `json:"body"`
		}{Body: mapSignals(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "acknowledge-signal",
		Method:      http.MethodPost,
		Path:        "/signals/{signal_id}/acknowledge",
		Summary:     "Acknowledge a risk signal",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		SignalID string `path:"signal_id"`
	}) (*struct {
		Body SignalResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.AcknowledgeSignal(ctx, input.SignalID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SignalResponse `json:"body"`
		}{Body: signalResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "resolve-signal",
		Method:      http.MethodPost,
		Path:        "/signals/{signal_id}/resolve",
		Summary:     "Resolve a risk signal",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SignalID string `path:"signal_id"`
	}) (*struct {
		Body SignalResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.ResolveSignal(ctx, input.SignalID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SignalResponse `json:"body"`
		}{Body: signalResponse(s)}, nil
	})
}

func registerConflicts(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-conflicts",
		Method:      http.MethodGet,
		Path:        "/conflicts",
		Summary:     "List capacity conflicts",
	}, func(ctx context.Context, input *struct {
		ResourceID string `query:"resource_id"`
		Resolved   string `query:"resolved" enum:"true,false,"`
	}) (*struct {
		Body []domain.Conflict `json:"body"`
	}, error) {
		var resolved *bool
		if input.Resolved != "" {
			v := input.Resolved == "true"
			resolved = &v
		}
		items, err := e.Repo.ListConflicts(ctx, repo.ConflictFilters{
			ResourceID: input.ResourceID,
			Resolved:   resolved,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Conflict `json:"body"`
		}{Body: mapConflicts(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "resolve-conflict",
		Method:      http.MethodPost,
		Path:        "/conflicts/{conflict_id}/resolve",
		Summary:     "Resolve a capacity conflict",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ConflictID string `path:"conflict_id"`
	}) (*struct {
		Body domain.Conflict `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.ResolveConflict(ctx, input.ConflictID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Conflict `json:"body"`
		}{Body: c}, nil
	})
}

func registerRiskProfile(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "project-risk-profile",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/risk-profile",
		Summary:     "Aggregated risk profile for a project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body engine.RiskProfile `json:"body"`
	}, error) {
		p, err := e.GetRiskProfile(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.RiskProfile `json:"body"`
		}{Body: p}, nil
	})
}

func registerSweeps(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "run-daily-sweep",
		Method:      http.MethodPost,
		Path:        "/sweeps/daily",
		Summary:     "Run the daily risk sweep now",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body SweepResponse `json:"body"`
	}, error) {
		sum, err := e.DailySweep(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SweepResponse `json:"body"`
		}{Body: SweepResponse{Daily: &sum}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "run-hourly-sweep",
		Method:      http.MethodPost,
		Path:        "/sweeps/hourly",
		Summary:     "Run the conflict reconciliation sweep now",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body SweepResponse `json:"body"`
	}, error) {
		sum, err := e.HourlySweep(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SweepResponse `json:"body"`
		}{Body: SweepResponse{Hourly: &sum}}, nil
	})
}

func registerMe(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current principal",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body WhoAmIResponse `json:"body"`
	}, error) {
		principal, ok := principalFromContext(ctx)
		if !ok || principal.ActorID == "" {
			return nil, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		}
		return &struct {
			Body WhoAmIResponse `json:"body"`
		}{Body: WhoAmIResponse{
			ActorID: principal.ActorID,
			OrgID:   principal.OrgID,
			Source:  principal.Source,
		}}, nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor := strings.TrimSpace(input.Body.ActorID)
		org := strings.TrimSpace(input.Body.OrgID)
		if actor == "" || org == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id and org_id are required", nil)
		}
		token, err := signDevToken(authCfg.JWTSecret, actor, org)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
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
