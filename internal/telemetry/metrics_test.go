package telemetry

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_CountsIndexingEvents(t *testing.T) {
	m := NewMetrics()

	m.PageProcessed(PageOK)
	m.PageProcessed(PageOK)
	m.PageProcessed(PageSkipped)
	m.WordsEmitted(120)
	m.WordsEmitted(-5)
	m.OverMergedRows(2)
	m.RunFinished(RunSuccess)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.pages.WithLabelValues(PageOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pages.WithLabelValues(PageSkipped)))
	assert.Equal(t, 120.0, testutil.ToFloat64(m.words))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.overMerged))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(RunSuccess)))
}

func TestMetrics_QueryObservedTracksZeroResults(t *testing.T) {
	m := NewMetrics()

	m.QueryObserved("hello", QueryOK, 3, time.Millisecond)
	m.QueryObserved("zzz", QueryOK, 0, time.Millisecond)
	m.QueryObserved("later", QueryNotBuilt, 0, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.queries.WithLabelValues(QueryOK)))
	assert.Equal(t, []string{"zzz"}, m.RecentZeroResultQueries())
	assert.Equal(t, 1, testutil.CollectAndCount(m.queryDuration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.PageProcessed(PageOK)
	m.WordsEmitted(1)
	m.OverMergedRows(1)
	m.RunFinished(RunFailed)
	m.QueryObserved("q", QueryOK, 0, 0)
	assert.Nil(t, m.RecentZeroResultQueries())
}

func TestMetrics_HandlerExposesTextFormat(t *testing.T) {
	m := NewMetrics()
	m.WordsEmitted(7)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "wordgrid_words_total 7"))
}

func TestCircularBuffer_EvictsOldest(t *testing.T) {
	b := NewCircularBuffer[int](3)
	assert.Empty(t, b.Items())

	for i := 1; i <= 5; i++ {
		b.Add(i)
	}

	assert.Equal(t, []int{3, 4, 5}, b.Items())
}
