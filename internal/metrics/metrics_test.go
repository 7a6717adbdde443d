package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IndependentRegistries(t *testing.T) {
	a := New()
	b := New()

	a.LoansIssued.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.LoansIssued))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.LoansIssued))
}

func TestObserveQuery(t *testing.T) {
	m := New()
	m.ObserveQuery("select", "loan", 3*time.Millisecond)
	m.ObserveQuery("select", "loan", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.DBQueryTotal.WithLabelValues("select", "loan")))
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/books/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"1", "2", "3"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/books/"+id, nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/books/{id}", "418")))
}

func TestHandler_ServesRegistry(t *testing.T) {
	m := New()
	m.LoansReturned.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "library_loans_returned_total 1")
}
