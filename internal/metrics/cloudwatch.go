package metrics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Pushed run metric names.
const (
	MetricProcessedURLs     = "ProcessedUrls"
	MetricTotalClicksWindow = "TotalClicksWindow"
)

const (
	// DefaultNamespace is the CloudWatch namespace for run metrics.
	DefaultNamespace = "UrlShortener/Analytics"
	// maxDatumsPerCall is the PutMetricData batch limit used here.
	maxDatumsPerCall = 20
	periodDimension  = "PeriodKey"
)

// Emitter pushes per-run metrics tagged with the period key.
type Emitter interface {
	Emit(ctx context.Context, period string, values map[string]float64) error
}

// NoopEmitter discards metrics.
type NoopEmitter struct{}

// Emit is a no-op.
func (NoopEmitter) Emit(context.Context, string, map[string]float64) error { return nil }

// PutMetricDataAPI is the subset of the CloudWatch client used here.
type PutMetricDataAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchEmitter publishes run metrics with PutMetricData.
type CloudWatchEmitter struct {
	client    PutMetricDataAPI
	namespace string
	now       func() time.Time
}

// NewCloudWatch returns an emitter writing to namespace.
func NewCloudWatch(client PutMetricDataAPI, namespace string) *CloudWatchEmitter {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &CloudWatchEmitter{client: client, namespace: namespace, now: time.Now}
}

// Emit sends one datum per value, in batches of at most 20.
func (c *CloudWatchEmitter) Emit(ctx context.Context, period string, values map[string]float64) error {
	if len(values) == 0 {
		return nil
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	ts := c.now().UTC()
	datums := make([]types.MetricDatum, 0, len(names))
	for _, name := range names {
		datums = append(datums, types.MetricDatum{
			MetricName: aws.String(name),
			Dimensions: []types.Dimension{{Name: aws.String(periodDimension), Value: aws.String(period)}},
			Timestamp:  aws.Time(ts),
			Value:      aws.Float64(values[name]),
			Unit:       unitFor(name),
		})
	}

	for start := 0; start < len(datums); start += maxDatumsPerCall {
		end := min(start+maxDatumsPerCall, len(datums))
		_, err := c.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(c.namespace),
			MetricData: datums[start:end],
		})
		if err != nil {
			return fmt.Errorf("put metric data: %w", err)
		}
	}
	return nil
}

func unitFor(name string) types.StandardUnit {
	if strings.Contains(name, "Clicks") || strings.Contains(name, "Count") {
		return types.StandardUnitCount
	}
	return types.StandardUnitNone
}
