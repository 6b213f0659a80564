package passage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/rocketreaders/pkg/reading"
)

// File is the top-level structure of a passage YAML file.
type File struct {
	Passages []Passage `yaml:"passages"`
}

// LoadFile reads, parses and validates a passage YAML file.
func LoadFile(path string) ([]Passage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("passage: open %q: %w", path, err)
	}
	defer f.Close()

	ps, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("passage: parse %q: %w", path, err)
	}
	return ps, nil
}

// LoadFromReader parses passage YAML from r, normalises every passage and
// validates it. Unknown keys are rejected to catch typos. All invalid
// passages are reported together.
func LoadFromReader(r io.Reader) ([]Passage, error) {
	var pf File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&pf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("passage: decode yaml: %w", err)
	}

	var errs []error
	for i := range pf.Passages {
		pf.Passages[i] = Normalize(pf.Passages[i])
		if err := Validate(pf.Passages[i]); err != nil {
			errs = append(errs, fmt.Errorf("passages[%d] (%s): %w", i, pf.Passages[i].ID, err))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if pf.Passages == nil {
		pf.Passages = []Passage{}
	}
	return pf.Passages, nil
}

// LoadFiles loads every file into a new [Library]. Duplicate IDs across
// files are an error.
func LoadFiles(paths ...string) (*Library, error) {
	lib := NewLibrary()
	for _, path := range paths {
		ps, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		for _, p := range ps {
			if err := lib.Add(p); err != nil {
				return nil, fmt.Errorf("passage: %q: %w", path, err)
			}
		}
	}
	return lib, nil
}

// Normalize trims identifiers, upper-cases the difficulty and recomputes
// WordCount from Content.
func Normalize(p Passage) Passage {
	p.ID = strings.TrimSpace(p.ID)
	p.Title = strings.TrimSpace(p.Title)
	p.Category = strings.ToLower(strings.TrimSpace(p.Category))
	p.Difficulty = strings.ToUpper(strings.TrimSpace(p.Difficulty))
	p.WordCount = len(reading.TokenizePassage(p.Content))
	return p
}
