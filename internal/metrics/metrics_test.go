package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectorsRecord(t *testing.T) {
	before := testutil.ToFloat64(QuestionsTotal.WithLabelValues("plain"))
	QuestionsTotal.WithLabelValues("plain").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(QuestionsTotal.WithLabelValues("plain")))

	DatasetRecords.Set(42)
	assert.Equal(t, float64(42), testutil.ToFloat64(DatasetRecords))

	CompletionDuration.WithLabelValues(OutcomeSuccess).Observe(1.5)
	assert.Equal(t, 1, testutil.CollectAndCount(CompletionDuration))
}
