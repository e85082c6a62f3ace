package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsRecordRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	finished := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	m.RecordRun("subscription-reconcile", 2*time.Second, finished, nil)
	m.RecordRun("subscription-reconcile", time.Second, finished.Add(time.Hour), errors.New("gateway down"))
	m.RecordRun("", time.Millisecond, finished, nil)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	runs := findMetricFamily(mfs, "bizvistar_cron_job_runs_total")
	if runs == nil {
		t.Fatal("runs counter missing")
	}
	byResult := map[string]float64{}
	for _, metric := range runs.GetMetric() {
		if matchesLabel(metric.GetLabel(), "job", "subscription-reconcile") {
			for _, l := range metric.GetLabel() {
				if l.GetName() == "result" {
					byResult[l.GetValue()] = metric.GetCounter().GetValue()
				}
			}
		}
	}
	if byResult["success"] != 1 || byResult["failure"] != 1 {
		t.Fatalf("unexpected run counts %v", byResult)
	}

	if got, err := fetchGaugeValue(mfs, "bizvistar_cron_job_last_success_timestamp_seconds", "job", "subscription-reconcile"); err != nil {
		t.Fatalf("fetch last success: %v", err)
	} else if got != float64(finished.Unix()) {
		t.Fatalf("failure must not move last success, got %f", got)
	}
	if _, err := fetchGaugeValue(mfs, "bizvistar_cron_job_last_success_timestamp_seconds", "job", "unknown"); err != nil {
		t.Fatalf("blank job names should be labelled unknown: %v", err)
	}

	var nilMetrics *CronJobMetrics
	nilMetrics.RecordRun("x", time.Second, finished, nil)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	metric, err := findSeries(mfs, name, label, value)
	if err != nil {
		return 0, err
	}
	return metric.GetCounter().GetValue(), nil
}

func fetchGaugeValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	metric, err := findSeries(mfs, name, label, value)
	if err != nil {
		return 0, err
	}
	return metric.GetGauge().GetValue(), nil
}

func findSeries(mfs []*dto.MetricFamily, name, label, value string) (*dto.Metric, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return nil, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric, nil
		}
	}
	return nil, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
