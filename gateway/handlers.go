// Copyright 2025 Unigate
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/unigate/unigate/pipeline"
	"github.com/unigate/unigate/providers"
)

// dataEnvelope is the uniform success body for direct data endpoints.
type dataEnvelope struct {
	RequestID        string         `json:"request_id"`
	Source           string         `json:"source"`
	Content          string         `json:"content"`
	Data             map[string]any `json:"data,omitempty"`
	Cached           bool           `json:"cached"`
	ProcessingTimeMs int64          `json:"processing_time_ms"`
}

// handleErr maps pipeline errors onto HTTP statuses.
func (s *Server) handleErr(w http.ResponseWriter, r *http.Request, err error) {
	requestID := RequestIDFrom(r.Context())
	switch {
	case errors.Is(err, providers.ErrInputInvalid):
		s.writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, providers.ErrNoProviderAvailable):
		promUpstreamFailures.Inc()
		s.log.ErrorWithCode(requestID, "no provider available", http.StatusServiceUnavailable, err, nil)
		s.writeError(w, r, http.StatusServiceUnavailable, "no provider is currently able to serve this request")
	default:
		s.log.ErrorWithCode(requestID, "request failed", http.StatusBadGateway, err, nil)
		s.writeError(w, r, http.StatusBadGateway, "upstream request failed")
	}
}

// fetch runs a direct data lookup and writes the envelope.
func (s *Server) fetch(w http.ResponseWriter, r *http.Request, domain providers.Domain, req providers.Request) {
	result, cached, err := s.pipeline.Fetch(r.Context(), domain, req)
	if err != nil {
		s.handleErr(w, r, err)
		return
	}
	if cached {
		promCacheHits.WithLabelValues(r.URL.Path).Inc()
	}
	s.writeJSON(w, http.StatusOK, dataEnvelope{
		RequestID:        RequestIDFrom(r.Context()),
		Source:           result.Provider,
		Content:          result.Content,
		Data:             result.Data,
		Cached:           cached,
		ProcessingTimeMs: result.Elapsed.Milliseconds(),
	})
}

// chatHandler runs the full conversational pipeline.
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	var req pipeline.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}

	resp, err := s.pipeline.Handle(r.Context(), req)
	if err != nil {
		s.handleErr(w, r, err)
		return
	}
	if resp.Cached {
		promCacheHits.WithLabelValues(r.URL.Path).Inc()
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"request_id": RequestIDFrom(r.Context()),
		"result":     resp,
	})
}

// searchHandler fans a query across categories.
func (s *Server) searchHandler(w http.ResponseWriter, r *http.Request) {
	var req pipeline.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}

	resp, err := s.pipeline.Search(r.Context(), req)
	if err != nil {
		s.handleErr(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"request_id": RequestIDFrom(r.Context()),
		"result":     resp,
	})
}

func (s *Server) cryptoPriceHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.fetch(w, r, providers.DomainCryptoPrice, providers.Request{
		Query:  id,
		Params: map[string]any{"id": id},
	})
}

func (s *Server) stockQuoteHandler(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	s.fetch(w, r, providers.DomainStock, providers.Request{
		Query:  symbol,
		Params: map[string]any{"symbol": symbol},
	})
}

func (s *Server) marketSummaryHandler(w http.ResponseWriter, r *http.Request) {
	s.fetch(w, r, providers.DomainMarket, providers.Request{Query: "market summary"})
}

func (s *Server) newsSearchHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		s.writeError(w, r, http.StatusBadRequest, "missing query parameter q")
		return
	}
	s.fetch(w, r, providers.DomainNews, providers.Request{
		Query:    q,
		Language: r.URL.Query().Get("language"),
	})
}

func (s *Server) weatherHandler(w http.ResponseWriter, r *http.Request) {
	params := map[string]any{}
	if city := r.URL.Query().Get("city"); city != "" {
		params["city"] = city
	}
	lat, latErr := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, lonErr := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if latErr == nil && lonErr == nil {
		params["lat"], params["lon"] = lat, lon
	}
	if len(params) == 0 {
		s.writeError(w, r, http.StatusBadRequest, "missing city or lat/lon parameters")
		return
	}
	s.fetch(w, r, providers.DomainWeather, providers.Request{
		Query:  r.URL.Query().Get("city"),
		Params: params,
	})
}

func (s *Server) geocodeHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		s.writeError(w, r, http.StatusBadRequest, "missing query parameter q")
		return
	}
	s.fetch(w, r, providers.DomainGeocode, providers.Request{
		Query:  q,
		Params: map[string]any{"place": q},
	})
}

func (s *Server) reverseGeocodeHandler(w http.ResponseWriter, r *http.Request) {
	lat, latErr := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, lonErr := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if latErr != nil || lonErr != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid or missing lat/lon parameters")
		return
	}
	s.fetch(w, r, providers.DomainGeocode, providers.Request{
		Params: map[string]any{"lat": lat, "lon": lon},
	})
}

// translateBody is the POST /api/translate request form.
type translateBody struct {
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
	Target string `json:"target"`
}

func (s *Server) translateHandler(w http.ResponseWriter, r *http.Request) {
	var body translateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Text == "" || body.Target == "" {
		s.writeError(w, r, http.StatusBadRequest, "text and target are required")
		return
	}
	s.fetch(w, r, providers.DomainTranslate, providers.Request{
		Query:  body.Text,
		Params: map[string]any{"source": body.Source, "target": body.Target},
	})
}

func (s *Server) mediaSearchHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		s.writeError(w, r, http.StatusBadRequest, "missing query parameter q")
		return
	}
	s.fetch(w, r, providers.DomainMedia, providers.Request{Query: q})
}

func (s *Server) medicalHandler(w http.ResponseWriter, r *http.Request) {
	topic := mux.Vars(r)["topic"]
	s.fetch(w, r, providers.DomainMedical, providers.Request{
		Query:  topic,
		Params: map[string]any{"topic": topic},
	})
}

// adminInvalidateHandler clears one domain's cache namespace.
func (s *Server) adminInvalidateHandler(w http.ResponseWriter, r *http.Request) {
	domain := r.URL.Query().Get("domain")
	if domain == "" {
		s.writeError(w, r, http.StatusBadRequest, "missing query parameter domain")
		return
	}
	if err := s.pipeline.Invalidate(r.Context(), providers.Domain(domain)); err != nil {
		s.log.ErrorWithCode(RequestIDFrom(r.Context()), "cache invalidation failed", http.StatusInternalServerError, err, nil)
		s.writeError(w, r, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"request_id":  RequestIDFrom(r.Context()),
		"invalidated": domain,
	})
}

// adminProvidersHandler reports the full registry state.
func (s *Server) adminProvidersHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"request_id": RequestIDFrom(r.Context()),
		"providers":  s.registry.SnapshotAll(),
	})
}
