package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecordsNestedMuxPattern(t *testing.T) {
	// Same shape as the server's route tree: an inner mux mounted on a root
	// mux under a prefix. The route label must carry the inner match, not the
	// root's "/api/v1/".
	inner := http.NewServeMux()
	inner.Handle("GET /api/v1/widgets/{id}", RecordPattern(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	root := http.NewServeMux()
	root.Handle("/api/v1/", inner)

	handler := Metrics(Logging(root))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/widgets/42", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	counted := testutil.ToFloat64(requestsTotal.WithLabelValues("GET", "GET /api/v1/widgets/{id}", "200"))
	require.Equal(t, 1.0, counted)
}

func TestMetricsLabelsUnmatchedRoutes(t *testing.T) {
	handler := Metrics(http.NewServeMux())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	counted := testutil.ToFloat64(requestsTotal.WithLabelValues("GET", "unmatched", "404"))
	require.Equal(t, 1.0, counted)
}
