package version

import "runtime/debug"

// version is overridden at link time:
//
//	go build -ldflags "-X github.com/vinodismyname/mfgstats/pkg/version.version=v1.2.0"
var version = "dev"

// Version returns the module version from build info when the binary was
// installed from a tagged module, else the link-time value.
func Version() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Sum != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return version
}

// String is the human-readable name and version.
func String() string {
	return "mfgstats " + Version()
}
