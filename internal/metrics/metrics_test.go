package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.TokenIssued()
	m.TokenIssued()
	m.ValidationFailed("expired")
	m.BlacklistDegraded("check")
	m.RefreshRotated("ok")
	m.RefreshRotated("reused")
	m.Revoked("all")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.tokensIssued))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.validationFailures.WithLabelValues("expired")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.blacklistDegraded.WithLabelValues("check")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rotations.WithLabelValues("reused")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.revocations.WithLabelValues("all")))

	n, err := testutil.GatherAndCount(reg, "auth_refresh_rotations_total")
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
}
