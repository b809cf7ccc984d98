package performance

import (
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/jblondin/etl/pkg/errors"
)

// Profiler writes CPU and heap profiles covering the span between Start and
// Stop. Empty paths disable the corresponding profile.
type Profiler struct {
	cpuPath, memPath string
	cpuFile          *os.File
}

// NewProfiler creates a Profiler.
func NewProfiler(cpuPath, memPath string) *Profiler {
	return &Profiler{cpuPath: cpuPath, memPath: memPath}
}

// Start begins CPU profiling.
func (p *Profiler) Start() error {
	if p.cpuPath == "" {
		return nil
	}
	f, err := os.Create(p.cpuPath)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create cpu profile").
			WithDetail("path", p.cpuPath)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to start cpu profile")
	}
	p.cpuFile = f
	return nil
}

// Stop ends CPU profiling and writes the heap profile.
func (p *Profiler) Stop() error {
	if p.cpuFile != nil {
		pprof.StopCPUProfile()
		if err := p.cpuFile.Close(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to close cpu profile")
		}
		p.cpuFile = nil
	}
	if p.memPath == "" {
		return nil
	}

	f, err := os.Create(p.memPath)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create memory profile").
			WithDetail("path", p.memPath)
	}
	defer f.Close()
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write memory profile")
	}
	return nil
}
