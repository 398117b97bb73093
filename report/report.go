// Package report contains the run report written after an extraction run.
// A report is a single JSON document, optionally zstd compressed and PGP
// encrypted.
package report

import (
	"github.com/fkie-cad/ahkdump"
	"github.com/fkie-cad/ahkdump/pefile"
	"github.com/fkie-cad/ahkdump/system"
	"github.com/fkie-cad/ahkdump/version"
	"github.com/google/uuid"
	"github.com/rjNemo/underscore"
)

// FormatVersion is the version of the report format written by this
// package.
var FormatVersion = version.Version{
	Major:  1,
	Minor:  0,
	Bugfix: 0,
}

// MetaInformation identifies a report and the software which wrote it.
type MetaInformation struct {
	ReportID       string          `json:"reportID"`
	AhkdumpVersion version.Version `json:"ahkdumpVersion"`
	FormatVersion  version.Version `json:"formatVersion"`
	SchemaURL      string          `json:"schemaURL"`
}

// Target describes the executable which was analysed.
type Target struct {
	Path      string           `json:"path"`
	Arguments []string         `json:"arguments"`
	Analysis  *pefile.Analysis `json:"analysis"`
}

// ProcessInfo is the outcome for one tracked process.
type ProcessInfo struct {
	PID         int                   `json:"pid"`
	Primary     bool                  `json:"primary"`
	Status      ahkdump.ProcessStatus `json:"status"`
	UnpackState ahkdump.UnpackState   `json:"unpackState"`
	Scripts     int                   `json:"scripts"`
	Error       *ErrorInfo            `json:"error"`
}

// ErrorInfo is the serialisable form of an error.
type ErrorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Statistics summarises a run.
type Statistics struct {
	Start           Time     `json:"start"`
	End             Time     `json:"end"`
	Duration        Duration `json:"duration"`
	Processes       int      `json:"processes"`
	ResourceScripts int      `json:"resourceScripts"`
	MemoryScripts   int      `json:"memoryScripts"`
	TotalScripts    int      `json:"totalScripts"`
}

// Report is the complete run report.
type Report struct {
	Meta      *MetaInformation `json:"meta"`
	Target    *Target          `json:"target"`
	System    *system.Info     `json:"system"`
	Stats     *Statistics      `json:"stats"`
	Processes []*ProcessInfo   `json:"processes"`
	Storage   string           `json:"storage"`
	Error     *ErrorInfo       `json:"error"`
	// TerminationError lists processes which survived the run.
	TerminationError *ErrorInfo `json:"terminationError"`
}

// GetMetaInformation returns the meta information for a new report.
func GetMetaInformation() *MetaInformation {
	return &MetaInformation{
		ReportID:       uuid.New().String(),
		AhkdumpVersion: version.AhkdumpVersion,
		FormatVersion:  FormatVersion,
		SchemaURL:      SchemaURL,
	}
}

func errorInfo(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	return &ErrorInfo{
		Kind:    ahkdump.KindOf(err).String(),
		Message: err.Error(),
	}
}

// FromRunResult builds a report from the result of an extraction run.
// The target may be nil if the run was attached to a running process.
func FromRunResult(res *ahkdump.RunResult, target *Target, storageHint string) *Report {
	processes := underscore.Map(res.Processes, func(p *ahkdump.ProcessResult) *ProcessInfo {
		return &ProcessInfo{
			PID:         p.PID,
			Primary:     p.Primary,
			Status:      p.Status,
			UnpackState: p.Unpack,
			Scripts:     p.Scripts,
			Error:       errorInfo(p.Err),
		}
	})
	if processes == nil {
		processes = make([]*ProcessInfo, 0)
	}
	memoryScripts := underscore.Reduce(processes, func(p *ProcessInfo, acc int) int {
		return acc + p.Scripts
	}, 0)

	return &Report{
		Meta:   GetMetaInformation(),
		Target: target,
		Stats: &Statistics{
			Start:           Time{res.Started},
			End:             Time{res.Finished},
			Duration:        Duration(res.Finished.Sub(res.Started)),
			Processes:       len(processes),
			ResourceScripts: res.ResourceScripts,
			MemoryScripts:   memoryScripts,
			TotalScripts:    res.Total,
		},
		Processes: processes,
		Storage:   storageHint,
		Error:     errorInfo(res.Err),

		TerminationError: errorInfo(res.TerminationErr),
	}
}
