package obs

import (
	"runtime"
	"runtime/debug"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "itroom_build_info",
			Help: "Always 1; labels identify the running build.",
		},
		[]string{"version", "commit", "goversion"},
	)

	startTime = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "itroom_start_time_seconds",
		Help: "Unix time the process published its build info.",
	})
)

// InitBuildInfo publishes the build labels, replacing any earlier set. An unset commit
// falls back to the VCS revision stamped by the Go toolchain.
func InitBuildInfo(version, commit string) {
	if commit == "" || commit == "none" {
		commit = vcsRevision()
	}
	buildInfo.Reset()
	buildInfo.WithLabelValues(version, commit, runtime.Version()).Set(1)
	startTime.SetToCurrentTime()
}

func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			return s.Value
		}
	}
	return "unknown"
}
