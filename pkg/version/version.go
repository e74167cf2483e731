package version

// Filled by the linker at build time
var (
	Version   string
	GitCommit string
)

func String() string {
	if Version != "" {
		return Version
	}
	if GitCommit != "" {
		return "dev-" + GitCommit
	}
	return "dev"
}
