package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitIdempotent(t *testing.T) {
	Init()
	first := harvesterCandidatesTotal
	Init()
	require.NotNil(t, first)
	assert.Same(t, first, harvesterCandidatesTotal)
}

func TestObserveFetchAndRejection(t *testing.T) {
	Init()
	beforeFetch := testutil.ToFloat64(harvesterCandidatesTotal.WithLabelValues("empty"))
	beforeReject := testutil.ToFloat64(harvesterRejectionsTotal.WithLabelValues("window"))
	beforeAccepted := testutil.ToFloat64(harvesterRacesAcceptedTotal)

	ObserveFetch("empty", 20*time.Millisecond)
	ObserveRejection("window")
	ObserveRejection("window")
	ObserveAccepted()
	SetLastRunRaces(7)

	assert.InDelta(t, beforeFetch+1, testutil.ToFloat64(harvesterCandidatesTotal.WithLabelValues("empty")), 0)
	assert.InDelta(t, beforeReject+2, testutil.ToFloat64(harvesterRejectionsTotal.WithLabelValues("window")), 0)
	assert.InDelta(t, beforeAccepted+1, testutil.ToFloat64(harvesterRacesAcceptedTotal), 0)
	assert.InDelta(t, 7, testutil.ToFloat64(harvesterLastRunRaces), 0)
}

func TestPushSkipsWithoutGateway(t *testing.T) {
	require.NoError(t, Push(context.Background(), "", "harvester"))
}

func TestPushSendsToGateway(t *testing.T) {
	Init()
	ObserveBatch(time.Second)

	var gotPath string
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	require.NoError(t, Push(context.Background(), gateway.URL, "harvester"))
	assert.Equal(t, "/metrics/job/harvester", gotPath)
}

func TestPushReportsGatewayFailure(t *testing.T) {
	Init()
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer gateway.Close()

	err := Push(context.Background(), gateway.URL, "harvester")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "push metrics")
}
