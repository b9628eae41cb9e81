package version

import (
	"strings"
	"testing"
)

func stamp(t *testing.T, version, commit, branch, buildTime string) {
	t.Helper()
	v, c, b, bt, g := Version, GitCommit, GitBranch, BuildTime, GoVersion
	t.Cleanup(func() {
		Version, GitCommit, GitBranch, BuildTime, GoVersion = v, c, b, bt, g
	})
	Version, GitCommit, GitBranch, BuildTime, GoVersion = version, commit, branch, buildTime, "go1.26.0"
}

func TestGet(t *testing.T) {
	stamp(t, "1.2.0", "abc1234", "main", "2026-03-01T10:30:00Z")

	info := Get()
	if info.Version != "1.2.0" || !info.IsRelease || info.GitCommit != "abc1234" {
		t.Errorf("info = %+v", info)
	}
	if info.GoVersion != "go1.26.0" || info.BuildDate.Year() != 2026 {
		t.Errorf("build fields = %+v", info)
	}
}

func TestGet_DevIsNotRelease(t *testing.T) {
	stamp(t, "dev", "", "", "")
	if Get().IsRelease {
		t.Error("dev build reported as release")
	}

	stamp(t, "1.2.0-dirty", "", "", "")
	if Get().IsRelease {
		t.Error("dirty build reported as release")
	}
}

func TestShortAndFull(t *testing.T) {
	stamp(t, "1.2.0", "abc1234", "main", "2026-03-01T10:30:00Z")
	if got := Short(); !strings.HasPrefix(got, "1.2.0-abc1234") {
		t.Errorf("Short = %q", got)
	}
	full := Full()
	if strings.Contains(full, "main") || !strings.Contains(full, "(built 2026-03-01T10:30:00Z)") {
		t.Errorf("Full = %q", full)
	}

	stamp(t, "1.2.0", "abc1234", "feature/srt-normalize", "2026-03-01T10:30:00Z")
	if !strings.Contains(Full(), "feature/srt-normalize") {
		t.Errorf("Full = %q, want branch", Full())
	}
}

func TestShortCommit(t *testing.T) {
	if got := shortCommit("0123456789abcdef"); got != "0123456" {
		t.Errorf("shortCommit = %q", got)
	}
}

func TestUserAgent(t *testing.T) {
	stamp(t, "1.2.0", "", "", "")
	if got := UserAgent(); got != "chunkscribe/1.2.0" {
		t.Errorf("UserAgent = %q", got)
	}
}
