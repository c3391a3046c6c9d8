package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type flowStat struct {
	messages int64
	bytes    int64
}

var (
	errorsPrices     int64
	errorsIndicators int64
	warnsPrices      int64
	warnsIndicators  int64
	priceReads       int64
	indicatorReads   int64
	droppedRecords   int64
	artifactWrites   int64
	s3Uploads        int64
	flows            sync.Map // map[string]*flowStat
)

func recordWarn(component string) {
	if strings.Contains(component, "itad") || strings.Contains(component, "price") {
		atomic.AddInt64(&warnsPrices, 1)
	} else if strings.Contains(component, "imf") || strings.Contains(component, "indicator") {
		atomic.AddInt64(&warnsIndicators, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "itad") || strings.Contains(component, "price") {
		atomic.AddInt64(&errorsPrices, 1)
	} else if strings.Contains(component, "imf") || strings.Contains(component, "indicator") {
		atomic.AddInt64(&errorsIndicators, 1)
	}
}

func IncrementPriceRead(size int) {
	atomic.AddInt64(&priceReads, 1)
	recordFlow("itad_rest", size)
}

func IncrementIndicatorRead(size int) {
	atomic.AddInt64(&indicatorReads, 1)
	recordFlow("imf_rest", size)
}

func IncrementDropped(count int) {
	atomic.AddInt64(&droppedRecords, int64(count))
}

func IncrementArtifactWrite(size int64) {
	atomic.AddInt64(&artifactWrites, 1)
	recordFlow("artifact_write", int(size))
}

func IncrementS3Upload(size int64) {
	atomic.AddInt64(&s3Uploads, 1)
	recordFlow("s3_upload", int(size))
}

func RecordFlowMessage(name string, size int) {
	recordFlow(name, size)
}

func recordFlow(name string, size int) {
	v, _ := flows.LoadOrStore(name, &flowStat{})
	fs := v.(*flowStat)
	atomic.AddInt64(&fs.messages, 1)
	atomic.AddInt64(&fs.bytes, int64(size))
}

func startReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

// StartReport begins periodic logging of collection and runtime statistics.
// It exposes the internal startReport function for use by other packages.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	startReport(ctx, log, interval)
}

func logReport(ctx context.Context, log *Log) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	flowData := map[string]map[string]int64{}
	flows.Range(func(k, v any) bool {
		name := k.(string)
		fs := v.(*flowStat)
		flowData[name] = map[string]int64{
			"messages": atomic.LoadInt64(&fs.messages),
			"bytes":    atomic.LoadInt64(&fs.bytes),
		}
		return true
	})

	allocMB := float64(memStats.Alloc) / 1024 / 1024
	sysMB := float64(memStats.Sys) / 1024 / 1024

	fields := Fields{
		"errors_prices":     atomic.LoadInt64(&errorsPrices),
		"errors_indicators": atomic.LoadInt64(&errorsIndicators),
		"warns_prices":      atomic.LoadInt64(&warnsPrices),
		"warns_indicators":  atomic.LoadInt64(&warnsIndicators),
		"price_reads":       atomic.LoadInt64(&priceReads),
		"indicator_reads":   atomic.LoadInt64(&indicatorReads),
		"dropped_records":   atomic.LoadInt64(&droppedRecords),
		"artifact_writes":   atomic.LoadInt64(&artifactWrites),
		"s3_uploads":        atomic.LoadInt64(&s3Uploads),
		"goroutines":        runtime.NumGoroutine(),
		"alloc_mb":          int64(allocMB),
		"sys_mb":            int64(sysMB),
		"gc_cycles":         memStats.NumGC,
		"flows":             flowData,
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	var data []cwtypes.MetricDatum
	data = append(data,
		cwtypes.MetricDatum{MetricName: aws.String("AllocMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(allocMB)},
		cwtypes.MetricDatum{MetricName: aws.String("SysMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(sysMB)},
		cwtypes.MetricDatum{MetricName: aws.String("Goroutines"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(runtime.NumGoroutine()))},
		cwtypes.MetricDatum{MetricName: aws.String("ErrorsPrices"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_prices"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("ErrorsIndicators"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_indicators"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("WarnsPrices"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_prices"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("WarnsIndicators"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_indicators"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("PriceReads"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["price_reads"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("IndicatorReads"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["indicator_reads"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("DroppedRecords"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["dropped_records"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("ArtifactWrites"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["artifact_writes"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("S3Uploads"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["s3_uploads"].(int64)))},
	)

	for name, stats := range flowData {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("FlowMessages"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Flow"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["messages"])),
			},
			cwtypes.MetricDatum{
				MetricName: aws.String("FlowBytes"),
				Unit:       cwtypes.StandardUnitBytes,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Flow"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["bytes"])),
			},
		)
	}

	publishMetrics(ctx, data)
}
