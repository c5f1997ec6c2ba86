package awsclient

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Metric names
const (
	MetricHTTPRequests = "HTTPRequests"
	MetricHTTPErrors   = "HTTPErrors"
	MetricHTTPLatency  = "HTTPLatency"

	MetricBulkRecordsProcessed = "BulkRecordsProcessed"
	MetricBulkRecordsFailed    = "BulkRecordsFailed"
	MetricBulkProcessingTime   = "BulkProcessingTime"
)

// CloudWatch accepts up to 1000 datums per call; keep batches small
const metricBatchSize = 20

type cloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// MetricsClient wraps AWS CloudWatch Metrics operations. A disabled client
// accepts every call and sends nothing.
type MetricsClient struct {
	client    cloudWatchAPI
	namespace string
	enabled   bool
}

// NewMetricsClient creates a CloudWatch Metrics client
func NewMetricsClient(cfg aws.Config, namespace string, enabled bool) *MetricsClient {
	return newMetricsClient(cloudwatch.NewFromConfig(cfg), namespace, enabled)
}

// NewDisabledMetricsClient returns a client that never calls AWS
func NewDisabledMetricsClient() *MetricsClient {
	return &MetricsClient{}
}

func newMetricsClient(api cloudWatchAPI, namespace string, enabled bool) *MetricsClient {
	if namespace == "" {
		namespace = "Reporting"
	}
	return &MetricsClient{client: api, namespace: namespace, enabled: enabled && api != nil}
}

// IsEnabled returns whether CloudWatch metrics are enabled
func (m *MetricsClient) IsEnabled() bool {
	return m != nil && m.enabled
}

// PutMetric sends a single metric data point to CloudWatch
func (m *MetricsClient) PutMetric(ctx context.Context, metricName string, value float64, unit types.StandardUnit, dimensions map[string]string) error {
	return m.PutMetricBatch(ctx, []types.MetricDatum{datum(metricName, value, unit, dimensions)})
}

// PutMetricBatch sends multiple metric data points to CloudWatch
func (m *MetricsClient) PutMetricBatch(ctx context.Context, metrics []types.MetricDatum) error {
	if !m.IsEnabled() || len(metrics) == 0 {
		return nil
	}

	for i := 0; i < len(metrics); i += metricBatchSize {
		end := min(i+metricBatchSize, len(metrics))
		_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(m.namespace),
			MetricData: metrics[i:end],
		})
		if err != nil {
			return fmt.Errorf("failed to put metric batch: %w", err)
		}
	}
	return nil
}

// RecordCount increments a counter metric
func (m *MetricsClient) RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error {
	return m.PutMetric(ctx, metricName, 1, types.StandardUnitCount, dimensions)
}

// RecordLatency records a duration metric in milliseconds
func (m *MetricsClient) RecordLatency(ctx context.Context, metricName string, duration time.Duration, dimensions map[string]string) error {
	return m.PutMetric(ctx, metricName, float64(duration.Milliseconds()), types.StandardUnitMilliseconds, dimensions)
}

// RecordBulkRun publishes the processed and failed counts and the elapsed time of one bulk run
func (m *MetricsClient) RecordBulkRun(ctx context.Context, entity, operation, outcome string, processed, failed int, elapsed time.Duration) error {
	dims := map[string]string{
		"Entity":    entity,
		"Operation": operation,
		"Outcome":   outcome,
	}
	return m.PutMetricBatch(ctx, []types.MetricDatum{
		datum(MetricBulkRecordsProcessed, float64(processed), types.StandardUnitCount, dims),
		datum(MetricBulkRecordsFailed, float64(failed), types.StandardUnitCount, dims),
		datum(MetricBulkProcessingTime, float64(elapsed.Milliseconds()), types.StandardUnitMilliseconds, dims),
	})
}

func datum(name string, value float64, unit types.StandardUnit, dimensions map[string]string) types.MetricDatum {
	dims := make([]types.Dimension, 0, len(dimensions))
	for k, v := range dimensions {
		dims = append(dims, types.Dimension{
			Name:  aws.String(k),
			Value: aws.String(v),
		})
	}
	return types.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       unit,
		Timestamp:  aws.Time(time.Now()),
		Dimensions: dims,
	}
}
