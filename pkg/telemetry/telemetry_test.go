package telemetry

import (
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestNewResourceStampsServiceAndDeploymentAttributes(t *testing.T) {
	res, err := newResource("conductor", "0.1.0", []attribute.KeyValue{
		attribute.Int("conductor.max_concurrent_tasks", 5),
		attribute.String("conductor.memory.provider", "vector"),
	})
	if err != nil {
		t.Fatal(err)
	}

	got := make(map[attribute.Key]attribute.Value)
	for _, kv := range res.Attributes() {
		got[kv.Key] = kv.Value
	}

	if got["service.name"].AsString() != "conductor" {
		t.Errorf("service.name = %q", got["service.name"].AsString())
	}
	if got["service.version"].AsString() != "0.1.0" {
		t.Errorf("service.version = %q", got["service.version"].AsString())
	}
	if got["conductor.max_concurrent_tasks"].AsInt64() != 5 {
		t.Errorf("max_concurrent_tasks attr = %v", got["conductor.max_concurrent_tasks"])
	}
	if got["conductor.memory.provider"].AsString() != "vector" {
		t.Errorf("memory.provider attr = %v", got["conductor.memory.provider"])
	}
}
