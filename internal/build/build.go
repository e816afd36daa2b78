// Package build holds values stamped in at link time:
//
//	go build -ldflags "-X github.com/ecstasoy/addrecho/internal/build.BuildVersion=v1.0.0 \
//	    -X github.com/ecstasoy/addrecho/internal/build.BuildTime=$(date -u +%FT%TZ)"
package build

var (
	BuildVersion = "dev"
	BuildTime    = "unknown"
)
