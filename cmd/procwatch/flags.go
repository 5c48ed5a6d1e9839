package main

import "github.com/loykin/procwatch/internal/config"

// RunFlags Flag struct to decouple cobra from logic for testing.
// Delays are milliseconds, as on the command line.
type RunFlags struct {
	ConfigPath string

	Path              string
	WatchFiles        bool
	Recursive         bool
	OnlyNonZeroExit   bool
	AllowNoExtension  bool
	RestartDelay      int64
	RecheckDelay      int64
	ForceRestartDelay int64
	StopTimeout       int64

	LogLevel  string
	LogFormat string
	LogColor  bool
	LogDir    string

	MetricsListen string
	UsageInterval int64
	HistoryDSN    string
}

// apply overlays the flags the user set explicitly onto fc.
func (f RunFlags) apply(fc *config.FileConfig, changed func(string) bool) {
	set := map[string]func(){
		"path":              func() { fc.Path = f.Path },
		"watchFiles":        func() { fc.WatchFiles = f.WatchFiles },
		"recursive":         func() { fc.Recursive = f.Recursive },
		"onlyNonZeroExit":   func() { fc.OnlyNonZeroExit = f.OnlyNonZeroExit },
		"allowNoExtension":  func() { fc.AllowNoExtension = f.AllowNoExtension },
		"restartDelay":      func() { fc.RestartDelay = f.RestartDelay },
		"recheckDelay":      func() { fc.RecheckDelay = f.RecheckDelay },
		"forceRestartDelay": func() { fc.ForceRestartDelay = f.ForceRestartDelay },
		"stop-timeout":      func() { fc.StopTimeout = f.StopTimeout },
		"log-level":         func() { fc.Log.Level = f.LogLevel },
		"log-format":        func() { fc.Log.Format = f.LogFormat },
		"log-color":         func() { fc.Log.Color = f.LogColor },
		"log-dir":           func() { fc.Log.Dir = f.LogDir },
		"metrics-listen":    func() { fc.Metrics.Listen = f.MetricsListen },
		"usage-interval":    func() { fc.Metrics.UsageInterval = f.UsageInterval },
		"history-db":        func() { fc.History.DSN = f.HistoryDSN },
	}
	for name, fn := range set {
		if changed(name) {
			fn()
		}
	}
}
