package decryptiondb

import "runtime/debug"

// Version reports the module version this binary was built from, the way
// caddy.Version does: read from the build info embedded by the Go
// toolchain rather than a hand-maintained constant, falling back to
// "unknown" when build info isn't available or carries no version.
func Version() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, dep := range bi.Deps {
		if dep.Path == "github.com/zama-ai/decryptiondb" {
			return dep.Version
		}
	}
	if bi.Main.Version != "" {
		return bi.Main.Version
	}
	return "unknown"
}
