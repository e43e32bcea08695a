package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sprite-ai/relnotes/internal/aggregate"
	"github.com/sprite-ai/relnotes/internal/collect"
	"github.com/sprite-ai/relnotes/internal/model"
	"github.com/sprite-ai/relnotes/internal/render"
	"github.com/sprite-ai/relnotes/internal/source"
)

// --- Health ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Aggregate ---

type aggregateRequest struct {
	Version string                     `json:"version"`
	Repos   []string                   `json:"repos"`
	Inputs  map[string]aggregate.Input `json:"inputs"`
}

func (req aggregateRequest) validate() string {
	if strings.TrimSpace(req.Version) == "" {
		return "version is required"
	}
	if len(req.Repos) == 0 {
		return "repos is required"
	}
	return ""
}

func (s *Server) aggregate(r *http.Request, req aggregateRequest) (*model.AggregatedRelease, error) {
	opts := []aggregate.Option{aggregate.WithConcurrency(s.opts.Concurrency)}
	if s.opts.Clock != nil {
		opts = append(opts, aggregate.WithClock(s.opts.Clock))
	}
	return aggregate.New(opts...).Aggregate(r.Context(), req.Version, req.Repos, req.Inputs)
}

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	var req aggregateRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		s.writeError(w, http.StatusBadRequest, msg)
		return
	}

	rel, err := s.aggregate(r, req)
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "aggregation cancelled: "+err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, rel)
}

// --- Render ---

type featuresJSON struct {
	IncludePRs    *bool `json:"include_prs,omitempty"`
	IncludeIssues *bool `json:"include_issues,omitempty"`
	Categorize    *bool `json:"categorize_commits,omitempty"`
	IncludeStats  *bool `json:"include_stats,omitempty"`
}

type renderRequest struct {
	aggregateRequest
	Format   string        `json:"format,omitempty"`
	Features *featuresJSON `json:"features,omitempty"`
	LinkBase string        `json:"link_base,omitempty"`
}

// renderOptions starts from the server defaults and applies per-request
// overrides. Custom template paths are never taken from requests.
func (s *Server) renderOptions(format string, f *featuresJSON) (render.Options, error) {
	opts := s.opts.Render
	if format != "" {
		parsed, err := render.ParseFormat(format)
		if err != nil {
			return opts, err
		}
		opts.Format = parsed
	}
	opts.Color = false
	if f == nil {
		return opts, nil
	}
	set := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	set(&opts.IncludePRs, f.IncludePRs)
	set(&opts.IncludeIssues, f.IncludeIssues)
	set(&opts.Categorize, f.Categorize)
	set(&opts.IncludeStats, f.IncludeStats)
	return opts, nil
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		s.writeError(w, http.StatusBadRequest, msg)
		return
	}
	opts, err := s.renderOptions(req.Format, req.Features)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.LinkBase != "" {
		opts.LinkBase = req.LinkBase
	}

	rel, err := s.aggregate(r, req.aggregateRequest)
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "aggregation cancelled: "+err.Error())
		return
	}
	s.writeRendered(w, rel, opts)
}

func (s *Server) writeRendered(w http.ResponseWriter, rel *model.AggregatedRelease, opts render.Options) {
	out, err := render.ToString(rel, opts)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "rendering: "+err.Error())
		return
	}
	w.Header().Set("Content-Type", opts.Format.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(out))
}

// --- Live release ---

type skippedJSON struct {
	Repo  string `json:"repo"`
	Error string `json:"error"`
}

type releaseResponse struct {
	Release *model.AggregatedRelease `json:"release"`
	Skipped []skippedJSON            `json:"skipped,omitempty"`
}

func skippedList(res *collect.Result) []skippedJSON {
	var out []skippedJSON
	for _, sk := range res.Skipped {
		out = append(out, skippedJSON{Repo: sk.Repo, Error: sk.Error()})
	}
	return out
}

func (s *Server) repoList(raw string) []string {
	if raw == "" {
		return s.opts.Repos
	}
	var repos []string
	for _, r := range strings.Split(raw, ",") {
		if r = strings.TrimSpace(r); r != "" {
			repos = append(repos, r)
		}
	}
	return repos
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	if s.opts.Source == nil {
		s.writeError(w, http.StatusServiceUnavailable, "no source configured")
		return
	}
	version := chi.URLParam(r, "version")
	repos := s.repoList(r.URL.Query().Get("repos"))
	if len(repos) == 0 {
		s.writeError(w, http.StatusBadRequest, "repos is required")
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = string(render.FormatJSON)
	}
	opts, err := s.renderOptions(format, nil)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := collect.Run(r.Context(), s.opts.Source, version, repos, collect.Options{
		Concurrency: s.opts.Concurrency,
		Policy:      s.opts.Policy,
		Logger:      s.log,
		Clock:       s.opts.Clock,
	})
	if err != nil {
		s.writeError(w, fetchStatus(err), err.Error())
		return
	}

	if opts.Format == render.FormatJSON {
		s.writeJSON(w, http.StatusOK, releaseResponse{Release: res.Release, Skipped: skippedList(res)})
		return
	}
	s.writeRendered(w, res.Release, opts)
}

func fetchStatus(err error) int {
	switch {
	case errors.Is(err, source.ErrRepoNotFound):
		return http.StatusNotFound
	case errors.As(err, new(*source.FetchError)):
		return http.StatusBadGateway
	default:
		return http.StatusServiceUnavailable
	}
}
