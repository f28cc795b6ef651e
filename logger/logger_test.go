package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
)

func TestWithComponent(t *testing.T) {
	log := Logger()
	entry := log.WithComponent("test")
	if v, ok := entry.Entry.Data["component"]; !ok || v != "test" {
		t.Fatalf("component field missing: %v", entry.Entry.Data)
	}
}

func TestConfigureInvalidLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("invalid", "json", "stderr", 0); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestConfigureInvalidFormat(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("info", "xml", "stderr", 0); err == nil {
		t.Fatalf("expected error for invalid format")
	}
}

func TestConfigureFileOutput(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	path := filepath.Join(t.TempDir(), "quote.log")

	log := Logger()
	if err := log.Configure("debug", "json", path, 0); err != nil {
		t.Fatalf("configure: %v", err)
	}
	log.WithComponent("file_test").Info("hello")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"component":"file_test"`) {
		t.Fatalf("log line missing component: %s", data)
	}
}

func TestWithEnv(t *testing.T) {
	t.Setenv("FOO", "bar")
	log := Logger()
	entry := log.WithEnv("FOO")
	if v, ok := entry.Entry.Data["FOO"]; !ok || v != "bar" {
		t.Fatalf("env field not set: %v", entry.Entry.Data)
	}
}

func TestLogMetricFields(t *testing.T) {
	var buf bytes.Buffer
	log := Logger()
	log.SetOutput(&buf)

	log.LogMetric("collector", "fetch_errors", int64(1), "counter", Fields{"source": "gemini"})

	var line map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["metric"] != "fetch_errors" || line["source"] != "gemini" || line["component"] != "collector" {
		t.Fatalf("unexpected metric line: %v", line)
	}
	if line["message"] != "metric" {
		t.Fatalf("message = %v", line["message"])
	}
}

func TestWarnAndErrorCounts(t *testing.T) {
	ResetCounts()
	t.Cleanup(ResetCounts)

	log := Logger()
	log.SetOutput(&bytes.Buffer{})
	log.WithComponent("alpha").Warn("w1")
	log.WithComponent("alpha").Warn("w2")
	log.WithComponent("beta").Error("e1")

	got := Counts()
	if len(got) != 2 {
		t.Fatalf("expected 2 components, got %v", got)
	}
	if got[0].Component != "alpha" || got[0].Warnings != 2 || got[0].Errors != 0 {
		t.Fatalf("alpha counts: %+v", got[0])
	}
	if got[1].Component != "beta" || got[1].Errors != 1 {
		t.Fatalf("beta counts: %+v", got[1])
	}
}

type fakePublisher struct {
	inputs []*cloudwatch.PutMetricDataInput
}

func (f *fakePublisher) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func (f *fakePublisher) PutDashboard(context.Context, *cloudwatch.PutDashboardInput, ...func(*cloudwatch.Options)) (*cloudwatch.PutDashboardOutput, error) {
	return &cloudwatch.PutDashboardOutput{}, nil
}

func TestLogMetricPublishesNumericValues(t *testing.T) {
	fake := &fakePublisher{}
	setPublisher(fake, "QuoteTest", "")
	t.Cleanup(func() { setPublisher(nil, "", "") })

	log := Logger()
	log.SetOutput(&bytes.Buffer{})
	log.LogMetric("aggregator", "partial_fill", 1, "counter", Fields{"side": "ask"})
	log.LogMetric("aggregator", "note", "not-a-number", "counter", nil)

	if len(fake.inputs) != 1 {
		t.Fatalf("expected one publish, got %d", len(fake.inputs))
	}
	in := fake.inputs[0]
	if *in.Namespace != "QuoteTest" {
		t.Fatalf("namespace = %s", *in.Namespace)
	}
	datum := in.MetricData[0]
	if *datum.MetricName != "partial_fill" || *datum.Value != 1 {
		t.Fatalf("unexpected datum: %+v", datum)
	}
	if len(datum.Dimensions) != 2 {
		t.Fatalf("expected component and side dimensions, got %d", len(datum.Dimensions))
	}
}
