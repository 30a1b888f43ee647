package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"gomediate/app"
	"gomediate/domain/core"
	"gomediate/domain/figure"
	"gomediate/domain/mediation"
	"gomediate/domain/table"
	apperrors "gomediate/internal/errors"
	"gomediate/internal/report"
	"gomediate/ports"
)

// runStudyRequest is the POST body for the three study endpoints. The
// dataset arrives either inline or as a server-side file path.
type runStudyRequest struct {
	Data        *table.Table        `json:"data,omitempty"`
	DatasetPath string              `json:"dataset_path,omitempty"`
	DatasetName string              `json:"dataset_name,omitempty"`
	Variables   mediation.Variables `json:"variables"`
	Config      *mediation.Config   `json:"config,omitempty"`
	Style       *figure.Style       `json:"style,omitempty"`
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) handleRunSimple(w http.ResponseWriter, r *http.Request) {
	a.runStudy(w, r, mediation.KindSimple)
}

func (a *App) handleRunExposureInteraction(w http.ResponseWriter, r *http.Request) {
	a.runStudy(w, r, mediation.KindExposureInteraction)
}

func (a *App) handleRunMediatorInteraction(w http.ResponseWriter, r *http.Request) {
	a.runStudy(w, r, mediation.KindMediatorInteraction)
}

func (a *App) runStudy(w http.ResponseWriter, r *http.Request, kind mediation.Kind) {
	var body runStudyRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.writeError(w, apperrors.InvalidInput("request body is not valid JSON"))
		return
	}

	req, err := a.buildStudyRequest(body)
	if err != nil {
		a.writeError(w, err)
		return
	}

	study, err := a.studies.Run(r.Context(), kind, req)
	if err != nil {
		a.logger.Warn("study run failed: kind=%s err=%v", kind, err)
		a.writeError(w, err)
		return
	}

	a.writeJSON(w, http.StatusCreated, study)
}

func (a *App) buildStudyRequest(body runStudyRequest) (app.StudyRequest, error) {
	req := app.StudyRequest{
		Variables: body.Variables,
		Config:    a.defaults,
	}
	if body.Config != nil {
		req.Config = *body.Config
	}
	if body.Style != nil {
		req.Style = *body.Style
	}

	switch {
	case body.Data != nil:
		req.Data = body.Data
		req.DatasetName = body.DatasetName
		if req.DatasetName == "" {
			req.DatasetName = "inline"
		}
	case body.DatasetPath != "":
		dataset, err := a.readDataset(body.DatasetPath)
		if err != nil {
			return app.StudyRequest{}, err
		}
		req.Data = dataset.Table
		req.DatasetName = dataset.Name
	default:
		return app.StudyRequest{}, apperrors.InvalidInput("either data or dataset_path is required")
	}

	return req, nil
}

func (a *App) readDataset(path string) (*ports.Dataset, error) {
	if a.reader == nil {
		return nil, apperrors.InvalidInput("server has no dataset reader configured")
	}
	dataset, err := a.reader.Read(path)
	if err != nil {
		return nil, apperrors.WithCode(apperrors.CodeInvalidInput, apperrors.Wrap(err, "failed to read dataset"))
	}
	return dataset, nil
}

func (a *App) handleGetStudy(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseStudyID(chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, apperrors.InvalidInput("study id must be a UUID"))
		return
	}

	study, err := a.studies.GetStudy(r.Context(), id)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, study)
}

func (a *App) handleStudyReport(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseStudyID(chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, apperrors.InvalidInput("study id must be a UUID"))
		return
	}

	study, err := a.studies.GetStudy(r.Context(), id)
	if err != nil {
		a.writeError(w, err)
		return
	}

	md, err := a.report.BuildMarkdown(study)
	if err != nil {
		a.writeError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(md))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(report.RenderHTML(md))
}

func (a *App) handleListStudies(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	summaries, err := a.studies.ListStudies(r.Context(), limit, offset)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if summaries == nil {
		summaries = []ports.StudySummary{}
	}
	a.writeJSON(w, http.StatusOK, map[string]interface{}{"studies": summaries})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func (a *App) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		a.logger.Error("failed to encode response: %v", err)
	}
}

// writeError maps domain failures onto HTTP statuses. Variable lookups
// are checked before the generic not-found class they wrap.
func (a *App) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case core.IsLookupError(err):
		status = http.StatusUnprocessableEntity
	case core.IsValidationError(err):
		status = http.StatusBadRequest
	case core.IsShapeMismatchError(err):
		status = http.StatusBadGateway
	case core.IsNotFoundError(err):
		status = http.StatusNotFound
	case apperrors.IsAppError(err):
		switch apperrors.GetCode(err) {
		case apperrors.CodeInvalidInput, apperrors.CodeValidationError, apperrors.CodeConfigInvalid:
			status = http.StatusBadRequest
		case apperrors.CodeNotFound:
			status = http.StatusNotFound
		case apperrors.CodeExternalService:
			status = http.StatusBadGateway
		}
	}

	a.writeJSON(w, status, map[string]string{"error": err.Error()})
}
