package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/rtseg"
	"github.com/hupe1980/rtseg/blobstore"
	"github.com/hupe1980/rtseg/export"
	"github.com/hupe1980/rtseg/response"
	"github.com/hupe1980/rtseg/segment"
)

// server answers queries against a consuming segment while it is being
// ingested.
type server struct {
	in        *rtseg.Ingester
	store     blobstore.BlobStore
	exportOpt func(*export.Options)
	mux       *http.ServeMux
}

func newServer(in *rtseg.Ingester, store blobstore.BlobStore, exportOpt func(*export.Options), gatherer prometheus.Gatherer) *server {
	s := &server{in: in, store: store, exportOpt: exportOpt, mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /query", s.handleQuery)
	s.mux.HandleFunc("GET /stats", s.handleStats)
	s.mux.HandleFunc("POST /exports/{name}", s.handleExport)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return s
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// handleQuery runs a selection. Parameters: select (comma separated), where
// (repeatable), limit and trace.
func (s *server) handleQuery(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	var cols []string
	if sel := params.Get("select"); sel != "" {
		cols = strings.Split(sel, ",")
	}
	q := s.in.Select(cols...).RequestID(r.Header.Get("X-Request-Id"))

	filter, err := parseWhere(s.in.Schema(), params["where"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, response.FromErrors(err))
		return
	}
	if filter != nil {
		q = q.Where(*filter)
	}
	if l := params.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, response.FromErrors(errors.New("limit: "+err.Error())))
			return
		}
		q = q.Limit(n)
	}
	if t, _ := strconv.ParseBool(params.Get("trace")); t {
		q = q.Trace(true)
	}

	resp, err := q.Execute(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, response.FromErrors(err))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type statsResponse struct {
	Ingest  rtseg.IngestStats       `json:"ingest"`
	Segment segment.SegmentMetadata `json:"segment"`
}

func (s *server) handleStats(w http.ResponseWriter, _ *http.Request) {
	md, err := s.in.Metadata()
	if err != nil {
		writeJSON(w, http.StatusGone, response.FromErrors(err))
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Ingest: s.in.Stats(), Segment: md})
}

func (s *server) handleExport(w http.ResponseWriter, r *http.Request) {
	var opts []func(*export.Options)
	if s.exportOpt != nil {
		opts = append(opts, s.exportOpt)
	}
	m, err := s.in.Export(r.Context(), s.store, r.PathValue("name"), opts...)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, response.FromErrors(err))
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
