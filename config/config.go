// Package config loads versioned offset profiles: which module to scan, the
// signature to find, the instruction geometry at the match and the node layout.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"runtime"

	"btndump/linkedlist"
	"btndump/ripaddr"
	"btndump/signature"

	"gopkg.in/yaml.v2"
)

//go:embed profiles.yaml
var builtinProfiles []byte

var (
	// ErrProfileNotFound is returned when a file has no profile with the requested name
	ErrProfileNotFound = errors.New("profile not found")

	// ErrInvalidProfile is returned by Validate
	ErrInvalidProfile = errors.New("invalid profile")
)

// Profile is one versioned set of offsets for one target build
type Profile struct {
	Name    string `yaml:"name"`
	Module  string `yaml:"module"`
	Pattern string `yaml:"pattern"`

	// DisplacementOffset and InstructionLength locate the disp32 at the match.
	// Both zero means decode the instruction instead.
	DisplacementOffset int `yaml:"displacement_offset"`
	InstructionLength  int `yaml:"instruction_length"`

	Layout linkedlist.Layout `yaml:"layout"`

	MaxNodes      int  `yaml:"max_nodes"`
	MaxNameLength uint `yaml:"max_name_length"`
}

// AutoInstruction reports whether the instruction geometry is decoded at the match
func (p Profile) AutoInstruction() bool {
	return p.DisplacementOffset == 0 && p.InstructionLength == 0
}

// Instruction returns the fixed instruction geometry
func (p Profile) Instruction() ripaddr.Instruction {
	return ripaddr.Instruction{DisplacementOffset: p.DisplacementOffset, Length: p.InstructionLength}
}

// Validate checks the profile can drive an extraction
func (p Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidProfile)
	}

	if p.Module == "" {
		return fmt.Errorf("%w: %s: missing module", ErrInvalidProfile, p.Name)
	}

	if _, err := signature.Parse(p.Pattern); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidProfile, p.Name, err)
	}

	if !p.AutoInstruction() {
		if err := p.Instruction().Validate(); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidProfile, p.Name, err)
		}
	}

	if p.MaxNodes < 0 {
		return fmt.Errorf("%w: %s: max_nodes %d is negative", ErrInvalidProfile, p.Name, p.MaxNodes)
	}

	return nil
}

// File is the top level of a profile file
type File struct {
	Profiles []Profile `yaml:"profiles"`
}

// Profile returns the profile called name
func (f *File) Profile(name string) (Profile, error) {
	for _, p := range f.Profiles {
		if p.Name == name {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("%w: %q", ErrProfileNotFound, name)
}

// Names lists the profile names in file order
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Profiles))
	for _, p := range f.Profiles {
		names = append(names, p.Name)
	}
	return names
}

// Parse decodes and validates a profile file
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}

	seen := make(map[string]bool)
	for _, p := range f.Profiles {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrInvalidProfile, p.Name)
		}
		seen[p.Name] = true
	}

	return &f, nil
}

// Load reads a profile file from disk
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}
	return Parse(data)
}

// Default returns the built-in profiles
func Default() *File {
	f, err := Parse(builtinProfiles)
	if err != nil {
		panic(fmt.Sprintf("built-in profiles: %v", err))
	}
	return f
}

// DefaultProfileName picks the built-in profile for the running platform
func DefaultProfileName() string {
	if runtime.GOOS == "windows" {
		return "cs2-windows"
	}
	return "cs2-linux"
}
