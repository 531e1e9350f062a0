package observability

import (
	"context"
	"strings"
	"testing"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservability_RecordsRequests(t *testing.T) {
	reg := promclient.NewRegistry()
	o, err := New("job-board-test", "", reg)
	require.NoError(t, err)
	defer o.Shutdown(context.Background())

	ctx, span := o.StartSpan(context.Background(), "GET /api/v1/jobs")
	o.RecordRequest(ctx, "/api/v1/jobs", 200, 12*time.Millisecond)
	span.End()

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	joined := strings.Join(names, ",")
	assert.Contains(t, joined, "http_server_requests")
	assert.Contains(t, joined, "http_server_duration")
}

func TestObservability_NoTracerWithoutEndpoint(t *testing.T) {
	o, err := New("job-board-test", "", promclient.NewRegistry())
	require.NoError(t, err)
	assert.Nil(t, o.tracerProvider)
	assert.NoError(t, o.Shutdown(context.Background()))
}
