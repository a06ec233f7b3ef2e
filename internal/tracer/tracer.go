package tracer

import (
	"github.com/Layr-Labs/tokenfarm/internal/config"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/mocktracer"
	ddTracer "gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

// StartTracer initializes the DataDog tracer
// If enabled is false, it starts a mock tracer instead
func StartTracer(enabled bool, env config.Environment) {
	if !enabled {
		mocktracer.Start()
		return
	}
	ddTracer.Start(
		ddTracer.WithEnv(env.String()),
		ddTracer.WithServiceName("tokenfarm"),
		ddTracer.WithGlobalServiceName(true),
		ddTracer.WithDebugMode(false),
		ddTracer.WithLogStartup(false),
	)
}

// StopTracer flushes and stops the active tracer.
func StopTracer() {
	ddTracer.Stop()
}
