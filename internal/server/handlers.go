package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/tablewash/tablewash/internal/audit"
	"github.com/tablewash/tablewash/internal/cache"
	"github.com/tablewash/tablewash/internal/rules"
	"github.com/tablewash/tablewash/internal/table"
	"github.com/tablewash/tablewash/internal/ws"
)

// maxUploadSize bounds multipart uploads to the normalize endpoint.
const maxUploadSize = 32 << 20 // 32 MB

// handleHealth reports service liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleInfo reports service configuration and counters.
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	rs, _ := s.currentRules()

	info := map[string]interface{}{
		"service":         "tablewash",
		"rules_loaded":    len(rs),
		"strict":          s.config.Normalize.Strict,
		"wildcard_compat": s.config.Normalize.WildcardCompat,
		"subscribers":     s.hub.ClientCount(),
	}
	if s.cache != nil {
		info["cache"] = s.cache.Stats()
	}

	writeJSON(w, http.StatusOK, info)
}

// handleNormalize accepts a multipart upload with a "table" file and an
// optional "rules" file (falling back to the server's default rule
// document), applies the rules, and responds with the transformed table
// as CSV.
func (s *Server) handleNormalize(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r.Context())
	log := s.logger.WithRunID(requestID)

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	tableName, tableData, err := readFormFile(r, "table")
	if err != nil {
		http.Error(w, "missing 'table' file", http.StatusBadRequest)
		return
	}

	ruleData, haveUpload := []byte(nil), false
	if _, data, err := readFormFile(r, "rules"); err == nil {
		ruleData, haveUpload = data, true
	}

	var rs rules.RuleSet
	if haveUpload {
		rs, err = rules.LoadBytes(ruleData, log.WithComponent("rules"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
	} else {
		rs, ruleData = s.currentRules()
		if len(rs) == 0 {
			http.Error(w, "no rule document uploaded and none configured", http.StatusBadRequest)
			return
		}
	}

	digest := cache.Digest(tableData, ruleData)
	if s.cache != nil {
		if output, ok := s.cache.Get(r.Context(), digest); ok {
			s.broadcastRun(tableName, len(rs), 0, 0, 0, true)
			w.Header().Set("Content-Type", "text/csv")
			w.Header().Set("X-Tablewash-Cache", "hit")
			io.WriteString(w, output)
			return
		}
	}

	tbl, err := table.LoadBytes(tableName, tableData, log.WithComponent("table"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	stats, err := s.engine.Apply(tbl, rs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	var buf bytes.Buffer
	if err := tbl.WriteCSV(&buf); err != nil {
		log.Error("Failed to encode output", zap.Error(err))
		http.Error(w, "failed to encode output", http.StatusInternalServerError)
		return
	}

	if s.cache != nil {
		if err := s.cache.Set(r.Context(), digest, buf.String()); err != nil {
			log.Warn("Failed to update result cache", zap.Error(err))
		}
	}

	if s.audit != nil {
		record := &audit.Record{
			TableSource:    tableName,
			TableHash:      digest,
			RuleCount:      stats.Rules,
			ColumnsTouched: stats.ColumnsTouched,
			CellsChanged:   stats.CellsChanged,
			DurationMS:     stats.Duration.Milliseconds(),
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.audit.Insert(ctx, record); err != nil {
				log.Warn("Failed to record audit entry", zap.Error(err))
			}
		}()
	}

	s.broadcastRun(tableName, stats.Rules, stats.ColumnsTouched, stats.CellsChanged, stats.Duration.Milliseconds(), false)

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("X-Tablewash-Cache", "miss")
	w.Write(buf.Bytes())
}

// handleRuns returns recent audit records.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		http.Error(w, "audit store not enabled", http.StatusNotFound)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := s.audit.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to query audit records", zap.Error(err))
		http.Error(w, "failed to query runs", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, records)
}

func (s *Server) broadcastRun(source string, ruleCount, columnsTouched, cellsChanged int, durationMS int64, cacheHit bool) {
	s.hub.BroadcastEvent(ws.Event{
		Type:      ws.EventTypeRunCompleted,
		Timestamp: time.Now(),
		Data: ws.RunEvent{
			TableSource:    source,
			Rules:          ruleCount,
			ColumnsTouched: columnsTouched,
			CellsChanged:   cellsChanged,
			DurationMS:     durationMS,
			CacheHit:       cacheHit,
		},
	})
}

func readFormFile(r *http.Request, field string) (string, []byte, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, err
	}
	return header.Filename, data, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
