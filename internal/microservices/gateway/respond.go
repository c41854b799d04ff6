package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"restaurant-assistant/internal/domain"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeProblem renders a simplified RFC 7807 body.
func writeProblem(w http.ResponseWriter, code int, typ, detail string) {
	writeJSON(w, code, map[string]any{
		"type":   typ,
		"title":  http.StatusText(code),
		"status": code,
		"detail": detail,
	})
}

var statusByCode = map[string]int{
	"MissingTenant":          http.StatusBadRequest,
	"InvalidArgument":        http.StatusBadRequest,
	"PermissionDenied":       http.StatusForbidden,
	"SessionNotFound":        http.StatusNotFound,
	"QuotaExceeded":          http.StatusTooManyRequests,
	"TransientStoreConflict": http.StatusServiceUnavailable,
}

func writeError(w http.ResponseWriter, err error) {
	code := domain.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	detail := "internal error"
	var de *domain.Error
	if errors.As(err, &de) {
		detail = de.Message
	}
	writeProblem(w, status, code, detail)
}

func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return domain.Errorf(domain.ErrInvalidArgument, "The request body is not valid JSON")
	}
	return nil
}

func atoiDefault(s string, d int) int {
	if s == "" {
		return d
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return n
}
