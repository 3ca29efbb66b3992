// Package util provides the compiler's option handling, output writing and
// small shared data structures.
package util

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Options carries everything the driver needs to lower one module.
type Options struct {
	Src          string // Path to the serialised MidIR module.
	Out          string // Path to the output file.
	Emit         string // Output flavour: "ir", "bc" or "obj".
	Threads      int    // Worker count for the parallel CFG analysis.
	Verbose      bool   // Set true to log lowering statistics to stdout.
	Verify       bool   // Set true to run the LLVM verifier on the result.
	TargetArch   int    // Output target architecture.
	TargetVendor int    // Output target vendor type. 0 = unknown.
	TargetOS     int    // Output target operating system type.
}

// buildConfig mirrors the TOML build configuration file. Flag values take
// precedence over file values.
type buildConfig struct {
	Out     string `toml:"out"`
	Emit    string `toml:"emit"`
	Threads int    `toml:"threads"`
	Verbose bool   `toml:"verbose"`
	Verify  bool   `toml:"verify"`
	Target  struct {
		Arch   string `toml:"arch"`
		Vendor string `toml:"vendor"`
		OS     string `toml:"os"`
	} `toml:"target"`
}

// ---------------------
// ----- Constants -----
// ---------------------

// maxThreads is the maximum worker count allowed for the parallel analysis.
const maxThreads = 64

// Target machine architectures.
const (
	UnknownArch = iota
	X86_64
	Aarch64
	Riscv64
)

// Target operating system.
const (
	UnknownOS = iota
	Linux
	Windows
	MAC
)

// Target vendor.
const (
	UnknownVendor = iota
	Apple
	PC
	IBM
)

// ---------------------
// ----- functions -----
// ---------------------

// LoadConfig merges the TOML build configuration at path into opt. Fields
// already set on opt (by flags) win over file values.
func LoadConfig(path string, opt *Options) error {
	var cfg buildConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return fmt.Errorf("build config %s: %w", path, err)
	}
	if opt.Out == "" {
		opt.Out = cfg.Out
	}
	if opt.Emit == "" {
		opt.Emit = cfg.Emit
	}
	if opt.Threads == 0 && cfg.Threads > 0 {
		if cfg.Threads > maxThreads {
			return fmt.Errorf("build config %s: thread count must be in range [1, %d]", path, maxThreads)
		}
		opt.Threads = cfg.Threads
	}
	if cfg.Verbose {
		opt.Verbose = true
	}
	if cfg.Verify {
		opt.Verify = true
	}
	if opt.TargetArch == UnknownArch && cfg.Target.Arch != "" {
		a, err := ParseArch(cfg.Target.Arch)
		if err != nil {
			return fmt.Errorf("build config %s: %w", path, err)
		}
		opt.TargetArch = a
	}
	if opt.TargetVendor == UnknownVendor && cfg.Target.Vendor != "" {
		v, err := ParseVendor(cfg.Target.Vendor)
		if err != nil {
			return fmt.Errorf("build config %s: %w", path, err)
		}
		opt.TargetVendor = v
	}
	if opt.TargetOS == UnknownOS && cfg.Target.OS != "" {
		o, err := ParseOS(cfg.Target.OS)
		if err != nil {
			return fmt.Errorf("build config %s: %w", path, err)
		}
		opt.TargetOS = o
	}
	return nil
}

// ParseArch maps an architecture identifier to its target constant.
func ParseArch(s string) (int, error) {
	switch s {
	case "x86_64":
		return X86_64, nil
	case "aarch64":
		return Aarch64, nil
	case "riscv64":
		return Riscv64, nil
	}
	return UnknownArch, fmt.Errorf("unexpected architecture identifier: %s", s)
}

// ParseVendor maps a vendor identifier to its target constant.
func ParseVendor(s string) (int, error) {
	switch s {
	case "pc":
		return PC, nil
	case "apple":
		return Apple, nil
	case "ibm":
		return IBM, nil
	}
	return UnknownVendor, fmt.Errorf("unexpected vendor identifier: %s", s)
}

// ParseOS maps an operating system identifier to its target constant.
func ParseOS(s string) (int, error) {
	switch s {
	case "linux":
		return Linux, nil
	case "windows":
		return Windows, nil
	case "mac":
		return MAC, nil
	}
	return UnknownOS, fmt.Errorf("unexpected operating system identifier: %s", s)
}

// ClampThreads normalises the requested worker count into [1, maxThreads].
func ClampThreads(t int) int {
	if t < 1 {
		return 1
	}
	if t > maxThreads {
		return maxThreads
	}
	return t
}
