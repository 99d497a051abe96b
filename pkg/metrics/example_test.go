package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// Example_basicUsage demonstrates basic metrics configuration.
func Example_basicUsage() {
	// Create a separate registry for this example
	registry := NewRegistry(prometheus.NewRegistry())

	registry.TasksSubmitted.WithLabelValues("etl").Add(10)
	registry.TasksCompleted.WithLabelValues("etl").Add(8)
	registry.TasksFailed.WithLabelValues("etl").Add(2)

	fmt.Println(testutil.ToFloat64(registry.TasksCompleted.WithLabelValues("etl")))

	// Output:
	// 8
}

// Example_customRegistry demonstrates sharing a custom Prometheus registry.
func Example_customRegistry() {
	reg := prometheus.NewRegistry()
	config := Config{
		Enabled:   true,
		Registry:  reg,
		Namespace: "reports",
	}

	first := For(config)
	second := For(config)
	first.CyclesCompleted.WithLabelValues("nightly").Inc()

	families, _ := reg.Gather()
	fmt.Println(first == second)
	fmt.Println(families[0].GetName())

	// Output:
	// true
	// reports_scheduler_cycles_total
}

// Example_disabled shows that a disabled config yields no registry.
func Example_disabled() {
	fmt.Println(For(Config{Enabled: false}) == nil)

	// Output:
	// true
}
