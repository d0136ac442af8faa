package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ Sleeper = TimerSleeper{}
	_ Sleeper = SleeperFunc(nil)

	_ RawConfigLoader = FileConfigLoader{}
	_ ConfigProvider  = (*CfgxConfigProvider)(nil)
	_ OptionsResolver = GoOptionsResolver{}

	_ MetricsRecorder = NopMetricsRecorder{}

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
