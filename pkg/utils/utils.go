package utils

import (
	"runtime"

	"github.com/validatedpatterns-sandbox/ramendr-starter-kit/pkg/logger"
)

// PrintRuntimeInfo logs the go runtime the binary was built with.
func PrintRuntimeInfo() {
	logger.DefaultZapLogger().Infof("go version: %s, os: %s, arch: %s",
		runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
