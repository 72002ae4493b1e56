// Package version reports the nodemap build version.
package version

import "runtime/debug"

// Version is set with -ldflags "-X github.com/vanderheijden86/nodemap/pkg/version.Version=v1.2.3".
// Without it the module version from the build info is used.
var Version = "dev"

func init() {
	if Version != "dev" {
		return
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}
}
