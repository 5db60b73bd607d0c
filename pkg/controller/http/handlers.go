package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/meirborowski/veriflow/pkg/domain/interfaces"
	"github.com/meirborowski/veriflow/pkg/domain/model/auth"
	"github.com/meirborowski/veriflow/pkg/domain/types"
	"github.com/meirborowski/veriflow/pkg/usecase"
	"github.com/meirborowski/veriflow/pkg/utils/errutil"
)

// requireMember checks that the authenticated caller may read the release.
// Pull-style queries carry the same membership requirement as joining the
// release's live session.
func requireMember(r *http.Request, uc *usecase.UseCases, releaseID types.ReleaseID) error {
	token, err := auth.TokenFromContext(r.Context())
	if err != nil {
		return err
	}
	_, err = uc.Session.AuthorizeRelease(r.Context(), releaseID, token.Sub)
	return err
}

// executionHistoryHandler lists a release's executions, newest first,
// with optional story/status filters and limit/offset pagination
func executionHistoryHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		releaseID := types.ReleaseID(chi.URLParam(r, "releaseID"))
		if err := requireMember(r, uc, releaseID); err != nil {
			errutil.HandleHTTP(r.Context(), w, err, 0)
			return
		}

		var opts []interfaces.ListExecutionOption
		q := r.URL.Query()
		if v := q.Get("story"); v != "" {
			opts = append(opts, interfaces.WithStory(types.StoryID(v)))
		}
		if v := q.Get("status"); v != "" {
			status := types.ExecutionStatus(v)
			if !status.IsValid() {
				errutil.HandleHTTP(r.Context(), w,
					goerr.Wrap(types.ErrBadRequest, "invalid status filter", goerr.V("status", v)), 0)
				return
			}
			opts = append(opts, interfaces.WithStatus(status))
		}
		if v := q.Get("limit"); v != "" {
			limit, err := strconv.Atoi(v)
			if err != nil || limit < 0 {
				errutil.HandleHTTP(r.Context(), w,
					goerr.Wrap(types.ErrBadRequest, "invalid limit", goerr.V("limit", v)), 0)
				return
			}
			opts = append(opts, interfaces.WithLimit(limit))
		}
		if v := q.Get("offset"); v != "" {
			offset, err := strconv.Atoi(v)
			if err != nil || offset < 0 {
				errutil.HandleHTTP(r.Context(), w,
					goerr.Wrap(types.ErrBadRequest, "invalid offset", goerr.V("offset", v)), 0)
				return
			}
			opts = append(opts, interfaces.WithOffset(offset))
		}

		execs, err := uc.Dashboard.GetExecutionHistory(r.Context(), releaseID, opts...)
		if err != nil {
			errutil.HandleHTTP(r.Context(), w, err, 0)
			return
		}

		respondJSON(w, r, map[string]any{"executions": execs})
	}
}

// dashboardHandler serves the pull-style dashboard aggregate of a release
func dashboardHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		releaseID := types.ReleaseID(chi.URLParam(r, "releaseID"))
		if err := requireMember(r, uc, releaseID); err != nil {
			errutil.HandleHTTP(r.Context(), w, err, 0)
			return
		}

		dashboard, err := uc.Dashboard.FindLatestByRelease(r.Context(), releaseID)
		if err != nil {
			errutil.HandleHTTP(r.Context(), w, err, 0)
			return
		}

		respondJSON(w, r, dashboard)
	}
}

// executionDetailHandler serves one execution with its step results,
// story snapshot and tester name
func executionDetailHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		executionID := types.ExecutionID(chi.URLParam(r, "executionID"))

		detail, err := uc.Dashboard.GetExecutionDetail(r.Context(), executionID)
		if err != nil {
			errutil.HandleHTTP(r.Context(), w, err, 0)
			return
		}
		if err := requireMember(r, uc, detail.Execution.ReleaseID); err != nil {
			errutil.HandleHTTP(r.Context(), w, err, 0)
			return
		}

		respondJSON(w, r, detail)
	}
}
