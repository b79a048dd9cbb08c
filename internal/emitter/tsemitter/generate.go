package tsemitter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/helloweilei/ropenapi/internal/spec"
)

// DefaultRequestModule is the import path of the request helper used by
// generated service files.
const DefaultRequestModule = "@/services/request"

// Options controls what is rendered and, for Emit, where it is written.
type Options struct {
	Tags          []string // include filter; nil means every tag
	ExcludeTags   []string
	RequestModule string // defaults to DefaultRequestModule
	APIPrefix     string // prepended to every url

	OutDir string // required by Emit
	Force  bool   // overwrite existing files
	DryRun bool   // don't write, only plan
}

// File is one generated file. Path is relative and slash-separated.
type File struct {
	Path    string
	Content []byte
}

// ErrorCode categorizes generation errors.
type ErrorCode string

const UnknownTag ErrorCode = "UnknownTag"

// ErrUnknownTag matches a GenerationError raised for an absent tag.
var ErrUnknownTag = errors.New("unknown tag")

// GenerationError reports a tag filter naming tags the document lacks.
type GenerationError struct {
	Code ErrorCode
	Tags []string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("tsemitter: unknown tag(s): %s", strings.Join(e.Tags, ", "))
}

func (e *GenerationError) Is(target error) bool {
	return target == ErrUnknownTag && e.Code == UnknownTag
}

// Generate renders a service file and a types file per selected service,
// in service order. It never mutates s and is a pure function of its
// arguments.
func Generate(s *spec.Specification, opts Options) ([]File, error) {
	if s == nil {
		return nil, errors.New("tsemitter: nil Specification")
	}
	services, err := selectServices(s, opts)
	if err != nil {
		return nil, err
	}

	requestModule := strings.TrimSpace(opts.RequestModule)
	if requestModule == "" {
		requestModule = DefaultRequestModule
	}

	dirs := serviceDirs(s)
	files := make([]File, 0, 2*len(services))
	for _, svc := range services {
		dir := dirs[svc.Tag]

		service, err := renderService(svc, requestModule, opts.APIPrefix)
		if err != nil {
			return nil, fmt.Errorf("tsemitter: render service %q: %w", svc.Tag, err)
		}
		types, err := renderTypes(s, svc)
		if err != nil {
			return nil, fmt.Errorf("tsemitter: render types %q: %w", svc.Tag, err)
		}
		files = append(files,
			File{Path: dir + "/" + dir + "-swagger.ts", Content: service},
			File{Path: dir + "/types.ts", Content: types},
		)
	}
	return files, nil
}

func selectServices(s *spec.Specification, opts Options) ([]*spec.Service, error) {
	var include map[string]bool
	if opts.Tags != nil {
		include = make(map[string]bool, len(opts.Tags))
		var missing []string
		for _, tag := range opts.Tags {
			if _, ok := s.Service(tag); !ok {
				missing = append(missing, tag)
			}
			include[tag] = true
		}
		if len(missing) > 0 {
			return nil, &GenerationError{Code: UnknownTag, Tags: missing}
		}
	}
	exclude := make(map[string]bool, len(opts.ExcludeTags))
	for _, tag := range opts.ExcludeTags {
		exclude[tag] = true
	}

	var out []*spec.Service
	for _, svc := range s.Services {
		if include != nil && !include[svc.Tag] {
			continue
		}
		if exclude[svc.Tag] {
			continue
		}
		out = append(out, svc)
	}
	return out, nil
}

// tagDir maps a tag onto a single path segment.
func tagDir(tag string) string {
	dir := strings.NewReplacer("/", "-", "\\", "-").Replace(tag)
	if dir == "" || dir == "." || dir == ".." {
		return "_"
	}
	return dir
}

// serviceDirs assigns every service its directory over the whole document,
// so a tag keeps the same directory whatever filter is applied.
func serviceDirs(s *spec.Specification) map[string]string {
	used := make(map[string]struct{}, len(s.Services))
	dirs := make(map[string]string, len(s.Services))
	for _, svc := range s.Services {
		dirs[svc.Tag] = uniqueDir(tagDir(svc.Tag), used)
	}
	return dirs
}

func uniqueDir(dir string, used map[string]struct{}) string {
	name := dir
	for i := 2; ; i++ {
		if _, clash := used[name]; !clash {
			break
		}
		name = fmt.Sprintf("%s-%d", dir, i)
	}
	used[name] = struct{}{}
	return name
}
