package serv

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/dosco/nlpipe/mongodriver"
	"github.com/go-http-utils/headers"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
)

const maxReadBytes = 100000 // 100Kb

var errQueryRequired = errors.New("query is required")

type translateRequest struct {
	Query string `json:"query"`
}

// writeJSON encodes data as JSON and writes to response, handling errors
func writeJSON(w http.ResponseWriter, data interface{}) {
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "encoding error", http.StatusInternalServerError)
	}
}

// writeJSONError writes a JSON error response with proper header ordering
func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set(headers.ContentType, "application/json")
	w.WriteHeader(status)
	writeJSON(w, map[string]string{"error": message})
}

// parseBody reads the request body up to maxReadBytes
func parseBody(r *http.Request) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r.Body, maxReadBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, "reading request body")
	}
	if len(b) > maxReadBytes {
		return nil, errors.New("request body too large")
	}
	return b, nil
}

// parseTranslateRequest decodes a {"query": "..."} body
func parseTranslateRequest(r *http.Request) (translateRequest, error) {
	var req translateRequest

	b, err := parseBody(r)
	if err != nil {
		return req, err
	}
	if err := json.Unmarshal(b, &req); err != nil {
		return req, errors.Wrap(err, "invalid request body JSON")
	}
	if strings.TrimSpace(req.Query) == "" {
		return req, errQueryRequired
	}
	return req, nil
}

// healthCheckHandler reports whether the service and its database are up
func healthCheckHandler(s1 *HttpService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := s1.Load().(*service)

		if p, ok := s.runner.(interface{ Ping(context.Context) error }); ok {
			ctx, cancel := context.WithTimeout(r.Context(), s.conf.Mongo.Timeout)
			defer cancel()

			if err := p.Ping(ctx); err != nil {
				s.log.Errorf("health check: %s", err)
				writeJSONError(w, http.StatusServiceUnavailable, "database unavailable")
				return
			}
		}

		w.Header().Set(headers.ContentType, "application/json")
		writeJSON(w, map[string]string{"status": "ok"})
	})
}

// translateHandler turns a sentence into a pipeline
// POST /api/v1/translate
func (s1 *HttpService) translateHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := s1.Load().(*service)

		req, err := parseTranslateRequest(r)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}

		res, b, err := s.engine.TranslateWithJSON(r.Context(), req.Query)
		if err != nil {
			s.metrics.translations.WithLabelValues("error").Inc()
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.metrics.observeResult(res)

		// a sentence naming no collection is a normal result
		w.Header().Set(headers.ContentType, "application/json")
		if s.conf.CacheControl != "" {
			w.Header().Set(headers.CacheControl, s.conf.CacheControl)
		}
		w.Write(b) //nolint:errcheck
	})
}

// runHandler translates a sentence and runs the pipeline
// POST /api/v1/run
func (s1 *HttpService) runHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := s1.Load().(*service)

		if s.runner == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "no database configured")
			return
		}

		req, err := parseTranslateRequest(r)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}

		res, err := s.engine.Translate(r.Context(), req.Query)
		if err != nil {
			s.metrics.translations.WithLabelValues("error").Inc()
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.metrics.observeResult(res)

		if !res.Found() {
			writeJSONError(w, http.StatusUnprocessableEntity, res.Error)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), s.conf.Mongo.Timeout)
		defer cancel()

		docs, err := s.runner.Aggregate(ctx, res.Collection, res.Pipeline,
			mongodriver.AggregateOptions{
				MaxDocs:        s.conf.Mongo.MaxDocs,
				FlattenGroupID: s.conf.Mongo.FlattenGroupID,
			})
		s.metrics.observeRun(err)
		if err != nil {
			s.log.Errorf("run %s: %s", res.Collection, err)
			writeJSONError(w, http.StatusBadGateway, err.Error())
			return
		}
		if docs == nil {
			docs = []bson.D{}
		}

		doc := append(res.Doc(), bson.E{Key: "data", Value: docs})
		b, err := bson.MarshalExtJSON(doc, false, false)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}

		w.Header().Set(headers.ContentType, "application/json")
		w.Write(b) //nolint:errcheck
	})
}

// schemaHandler returns the schema translations run against
// GET /api/v1/schema
func (s1 *HttpService) schemaHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := s1.Load().(*service)

		b, err := json.Marshal(s.engine.Schema())
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set(headers.ContentType, "application/json")
		w.Write(b) //nolint:errcheck
	})
}
