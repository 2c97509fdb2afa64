package version

// Version is the build version of algotrade.
// This value is set at build time using ldflags:
// -ldflags "-X github.com/rxtech-lab/argo-algo/internal/version.Version=1.2.3"
// The default value "main" indicates a development build.
var Version = "main"

// ModelFormat is the model file format this build reads.
const ModelFormat = "1.0.0"

// GetVersion returns the build version.
func GetVersion() string {
	return Version
}
