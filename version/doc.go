// Package version reports the chunkscribe build.
//
// Version, commit, branch and build time are stamped at link time:
//
//	go build -ldflags "-X github.com/kbukum/chunkscribe/version.Version=1.2.0"
//
// Anything left unset is filled from the module's embedded VCS settings.
package version
