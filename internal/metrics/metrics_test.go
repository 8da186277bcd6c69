package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.GamesArchived(3)
		m.ArchiveSweep("ok")
		m.MembershipChange("join")
		m.GeocodeRequest("hit")
		m.MapMarkers(2)
	})
}

func TestCollectors(t *testing.T) {
	m := New()

	m.GamesArchived(2)
	m.GamesArchived(1)
	m.MembershipChange("join")
	m.MembershipChange("join")
	m.MembershipChange("leave")
	m.MapMarkers(5)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.gamesArchived))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.membershipChanges.WithLabelValues("join")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.membershipChanges.WithLabelValues("leave")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.mapMarkers))
}

func TestHandlerExposesNamespace(t *testing.T) {
	m := New()
	m.ArchiveSweep("ok")

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `powkie_archive_sweeps_total{result="ok"} 1`)
}
