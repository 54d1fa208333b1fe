package version

// Value is set at build time:
//
//	go build -ldflags "-X nsg-job-manager/internal/version.Value=v0.4.0"
var Value = "dev"
