package tool

import (
	"context"
	"fmt"
	"runtime"
)

// DeviceInfo reports facts about the host process via the runtime package,
// so the registry ships a second self-contained reference tool
// alongside Calculator.
type DeviceInfo struct{}

func (DeviceInfo) Name() string { return "device_info" }

func (DeviceInfo) Description() string {
	return "Reports basic information about the device running the assistant (OS, architecture, CPU count)."
}

func (DeviceInfo) ParametersSchema() map[string]any {
	return NewSchema().Build()
}

func (DeviceInfo) Execute(_ context.Context, _ map[string]any) Output {
	return Success(fmt.Sprintf(
		"os=%s arch=%s cpus=%d go=%s",
		runtime.GOOS, runtime.GOARCH, runtime.NumCPU(), runtime.Version(),
	))
}
