package version

// Version is overridable at link time:
//
//	go build -ldflags "-X sift/internal/version.Version=v1.2.3"
var Version = "0.1.0-dev"

func String() string { return Version }
