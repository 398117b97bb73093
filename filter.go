package ahkdump

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"text/template"

	"github.com/dustin/go-humanize"
	"github.com/fkie-cad/ahkdump/procio"
)

// FilterMatch contains information about the matching of a MemorySegmentFilter.
type FilterMatch struct {
	Result bool
	MSI    *procio.MemorySegmentInfo
	Reason string // Reason for filter mismatch, if Result is false
}

// MemorySegmentFilterFunc is a callback, used to filter *procio.MemorySegmentInfo
// instances.
type MemorySegmentFilterFunc func(info *procio.MemorySegmentInfo) bool

// MemorySegmentFilter describes an interface, capable of filtering
// *procio.MemorySegmentInfo instances.
type MemorySegmentFilter interface {
	Filter(info *procio.MemorySegmentInfo) *FilterMatch
}

type baseFilter struct {
	filter         MemorySegmentFilterFunc
	Parameter      interface{}
	reasonTemplate string

	parseOnce sync.Once
	tmpl      *template.Template
}

var filterFuncs = template.FuncMap{
	"bytes": func(val interface{}) string {
		n := reflect.ValueOf(val)
		return humanize.IBytes(n.Uint())
	},
	"join": func(glue string, slice interface{}) string {
		s := reflect.ValueOf(slice)
		if s.Kind() != reflect.Slice {
			panic("argument is not a slice")
		}
		parts := make([]string, s.Len())
		for i := 0; i < s.Len(); i++ {
			str, ok := s.Index(i).Interface().(fmt.Stringer)
			if !ok {
				panic("slice does not contain implementations of the fmt.Stringer interface")
			}
			parts[i] = str.String()
		}
		return strings.Join(parts, glue)
	},
}

func (f *baseFilter) renderReason(info *procio.MemorySegmentInfo) string {
	f.parseOnce.Do(func() {
		t, err := template.New("filterReason").Funcs(filterFuncs).Parse(f.reasonTemplate)
		if err != nil {
			panic("could not parse filter reason template: " + err.Error())
		}
		f.tmpl = t
	})

	buf := &bytes.Buffer{}
	err := f.tmpl.Execute(buf, &struct {
		Filter MemorySegmentFilter
		MSI    *procio.MemorySegmentInfo
	}{
		Filter: f,
		MSI:    info,
	})
	if err != nil {
		panic(err)
	}

	return buf.String()
}

func (f *baseFilter) Filter(info *procio.MemorySegmentInfo) *FilterMatch {
	var reasonForMismatch string

	matches := f.filter(info)
	if !matches {
		reasonForMismatch = f.renderReason(info)
	}

	return &FilterMatch{
		Result: matches,
		MSI:    info,
		Reason: reasonForMismatch,
	}
}

// NewFilterFromFunc creates a new filter from a given MemorySegmentFilterFunc.
// The reasonTemplate is a text/template, rendered with the fields Filter and
// MSI whenever a segment does not match.
func NewFilterFromFunc(filter MemorySegmentFilterFunc, parameter interface{}, reasonTemplate string) MemorySegmentFilter {
	return &baseFilter{
		filter:         filter,
		Parameter:      parameter,
		reasonTemplate: reasonTemplate,
	}
}

// NewMaxSizeFilter creates a new filter, matching *procio.MemorySegmentInfo
// with the given maximum size. A size of 0 disables the limit.
func NewMaxSizeFilter(size uintptr) MemorySegmentFilter {
	return NewFilterFromFunc(
		func(info *procio.MemorySegmentInfo) bool {
			return size == 0 || info.Size <= size
		},
		size,
		"segment too large, size: {{.MSI.Size|bytes}}, max-size: {{.Filter.Parameter|bytes}}",
	)
}

// NewStateFilter creates a new filter, matching *procio.MemorySegmentInfo
// with a procio.State equal to one of the given states.
func NewStateFilter(states []procio.State) MemorySegmentFilter {
	return NewFilterFromFunc(
		func(info *procio.MemorySegmentInfo) bool {
			for _, s := range states {
				if info.State == s {
					return true
				}
			}
			return false
		},
		states,
		"segment has wrong state, state: {{.MSI.State}}, allowed states: {{.Filter.Parameter|join \", \"}}",
	)
}

// NewReadableFilter creates a new filter, matching committed segments which
// are neither guard pages nor marked as not accessible.
func NewReadableFilter() MemorySegmentFilter {
	return NewFilterFromFunc(
		func(info *procio.MemorySegmentInfo) bool {
			return info.IsReadable()
		},
		nil,
		"segment is not readable, state: {{.MSI.State}}, permissions: {{.MSI.CurrentPermissions}}{{if .MSI.Guarded}}, guarded{{end}}",
	)
}

type andFilter struct {
	filters []MemorySegmentFilter
}

// NewAndFilter creates a new filter, which is the logical AND-combination
// of all given MemorySegmentFilter instances.
func NewAndFilter(filters ...MemorySegmentFilter) MemorySegmentFilter {
	return &andFilter{
		filters: filters,
	}
}

func (f *andFilter) Filter(info *procio.MemorySegmentInfo) *FilterMatch {
	result := &FilterMatch{
		Result: true,
		MSI:    info,
	}
	reasons := make([]string, 0)
	for _, filter := range f.filters {
		if filter == nil {
			continue
		}

		r := filter.Filter(info)
		if !r.Result {
			result.Result = false
			reasons = append(reasons, r.Reason)
		}
	}
	if !result.Result {
		result.Reason = strings.Join(reasons, " AND ")
	}
	return result
}

// DefaultRegionFilter returns the filter applied before every region read:
// the region must be readable and not larger than maxSize.
func DefaultRegionFilter(maxSize uintptr) MemorySegmentFilter {
	return NewAndFilter(NewReadableFilter(), NewMaxSizeFilter(maxSize))
}
