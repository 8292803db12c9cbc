package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordTraining(t *testing.T) {
	before := testutil.ToFloat64(TrainingRuns.WithLabelValues("retrain", ResultValidation))
	RecordTraining("retrain", ResultValidation, 50*time.Millisecond)
	after := testutil.ToFloat64(TrainingRuns.WithLabelValues("retrain", ResultValidation))
	assert.Equal(t, before+1, after)
}

func TestRecordPrediction(t *testing.T) {
	before := testutil.ToFloat64(PredictionsTotal.WithLabelValues("ok"))
	RecordPrediction("ok")
	RecordPrediction("ok")
	assert.Equal(t, before+2, testutil.ToFloat64(PredictionsTotal.WithLabelValues("ok")))
}

func TestSetServedModel(t *testing.T) {
	at := time.Unix(1700000000, 0)
	SetServedModel(120, 14, at)

	assert.Equal(t, 120.0, testutil.ToFloat64(DatasetRows))
	assert.Equal(t, 14.0, testutil.ToFloat64(ModelFeatures))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(ModelLoadedTimestamp))
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("POST", "/predict", "200"))
	RecordAPIRequest("POST", "/predict", "200", 3*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(APIRequestsTotal.WithLabelValues("POST", "/predict", "200")))
}
