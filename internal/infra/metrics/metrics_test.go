package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBlocklist map[string]int

func (f fakeBlocklist) Sources() []string {
	return []string{"file", "spotify"}
}

func (f fakeBlocklist) SourceLen(name string) int {
	return f[name]
}

func TestMetrics_Counters(t *testing.T) {
	m := New(nil)

	m.Skip(SkipOK)
	m.Skip(SkipOK)
	m.Skip(SkipBusError)
	m.Command("reload_blocklist")
	m.Reload("file", nil)
	m.Reload("file", errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.skips.WithLabelValues(SkipOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.skips.WithLabelValues(SkipBusError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commands.WithLabelValues("reload_blocklist")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reloads.WithLabelValues("file", "error")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.Skip(SkipOK)
		m.Command("x")
		m.Snapshot()
		m.Reconnect()
		m.Reload("file", nil)
	})
}

func TestMetrics_HandlerExposesBlocklistSize(t *testing.T) {
	m := New(fakeBlocklist{"file": 3, "spotify": 7})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `audiowarden_blocklist_entries{source="file"} 3`))
	assert.True(t, strings.Contains(body, `audiowarden_blocklist_entries{source="spotify"} 7`))
}
