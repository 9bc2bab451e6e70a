package obs

import (
	"github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"
)

// StartProfiler starts continuous profiling against a pyroscope server. An empty
// address disables profiling and returns a no-op stop.
func StartProfiler(app, address string, tags map[string]string) (stop func(), err error) {
	if address == "" {
		return func() {}, nil
	}

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: app,
		ServerAddress:   address,
		Tags:            tags,
		Logger:          profileLogger{},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
	if err != nil {
		return nil, err
	}
	return func() { _ = profiler.Stop() }, nil
}

type profileLogger struct{}

func (profileLogger) Infof(format string, args ...interface{}) {
	logs.Infof("pyroscope: "+format, args...)
}

func (profileLogger) Debugf(_ string, _ ...interface{}) {}

func (profileLogger) Errorf(format string, args ...interface{}) {
	logs.Errorf("pyroscope: "+format, args...)
}
