// Package main implements the midlc CLI: it loads a serialised MidIR
// module, validates it and lowers it to LLVM IR, bitcode or a target
// object file.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"midlc/src/ir"
	"midlc/src/ir/llvm"
	"midlc/src/util"
)

// appVersion identifies the compiler build.
const appVersion = "midlc 1.0"

var (
	flagOut     string
	flagEmit    string
	flagConfig  string
	flagThreads int
	flagVerbose bool
	flagVerify  bool
	flagArch    string
	flagVendor  string
	flagOS      string
)

var rootCmd = &cobra.Command{
	Use:   "midlc",
	Short: "MidIR to LLVM code generator",
	Long:  "midlc lowers typed, CFG-based MidIR modules into LLVM bitcode in SSA form.",
}

var buildCmd = &cobra.Command{
	Use:   "build [flags] module.mir",
	Short: "Lower a MidIR module and emit IR, bitcode or an object file",
	Args:  cobra.ExactArgs(1),
	RunE:  runBuild,
}

var dumpCmd = &cobra.Command{
	Use:   "dump module.mir",
	Short: "Decode a MidIR module and print a summary of its tables",
	Args:  cobra.ExactArgs(1),
	RunE:  runDump,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the compiler version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(appVersion)
	},
}

func init() {
	buildCmd.Flags().StringVarP(&flagOut, "out", "o", "", "path of the output file (default stdout)")
	buildCmd.Flags().StringVar(&flagEmit, "emit", "", "output flavour: ir, bc or obj (default ir)")
	buildCmd.Flags().StringVar(&flagConfig, "config", "", "path of a TOML build configuration")
	buildCmd.Flags().IntVarP(&flagThreads, "threads", "t", 0, "worker count for the CFG analysis")
	buildCmd.Flags().BoolVar(&flagVerbose, "verbose", false, "log lowering statistics to stdout")
	buildCmd.Flags().BoolVar(&flagVerify, "verify", false, "run the LLVM verifier on the result")
	buildCmd.Flags().StringVar(&flagArch, "arch", "", "target architecture: x86_64, aarch64 or riscv64")
	buildCmd.Flags().StringVar(&flagVendor, "vendor", "", "target vendor: pc, apple or ibm")
	buildCmd.Flags().StringVar(&flagOS, "os", "", "target operating system: linux, windows or mac")
}

func main() {
	rootCmd.Version = appVersion
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(versionCmd)
	if err := rootCmd.Execute(); err != nil {
		util.PrintError("%s", err)
		os.Exit(1)
	}
}

// buildOptions folds the flag values and the optional TOML configuration
// into a util.Options.
func buildOptions(src string) (util.Options, error) {
	opt := util.Options{
		Src:     src,
		Out:     flagOut,
		Emit:    flagEmit,
		Threads: flagThreads,
		Verbose: flagVerbose,
		Verify:  flagVerify,
	}
	var err error
	if flagArch != "" {
		if opt.TargetArch, err = util.ParseArch(flagArch); err != nil {
			return opt, err
		}
	}
	if flagVendor != "" {
		if opt.TargetVendor, err = util.ParseVendor(flagVendor); err != nil {
			return opt, err
		}
	}
	if flagOS != "" {
		if opt.TargetOS, err = util.ParseOS(flagOS); err != nil {
			return opt, err
		}
	}
	if flagConfig != "" {
		if err = util.LoadConfig(flagConfig, &opt); err != nil {
			return opt, err
		}
	}
	return opt, nil
}

// runBuild executes the build subcommand.
func runBuild(cmd *cobra.Command, args []string) error {
	opt, err := buildOptions(args[0])
	if err != nil {
		return err
	}
	m, err := loadModule(opt)
	if err != nil {
		return err
	}
	out, err := llvm.Compile(opt, m)
	if err != nil {
		return err
	}
	return util.WriteOutput(opt, out)
}

// runDump executes the dump subcommand.
func runDump(cmd *cobra.Command, args []string) error {
	m, err := loadModule(util.Options{Src: args[0]})
	if err != nil {
		return err
	}
	fmt.Printf("module %s\n", m.Name)
	for i1 := range m.Types {
		if m.Types[i1].Body == nil {
			fmt.Printf("  type %d %s = <opaque>\n", i1, m.Types[i1].Name)
			continue
		}
		fmt.Printf("  type %d %s = %s\n", i1, m.Types[i1].Name, m.Types[i1].Body.String())
	}
	for i1 := range m.Headers {
		h := &m.Headers[i1]
		fmt.Printf("  gc header %d: type %s, %s, %s\n", i1, m.TypeName(h.Type), h.Mobility, h.Mut)
	}
	for i1 := range m.Globals {
		g := &m.Globals[i1]
		if g.Kind == ir.GlobalFunc {
			fmt.Printf("  func %d %s: %d blocks\n", i1, g.Name, len(g.Func.Blocks))
			continue
		}
		fmt.Printf("  var %d %s: %s\n", i1, g.Name, g.Type.String())
	}
	return nil
}

// loadModule reads, decodes and validates the module named by the options.
func loadModule(opt util.Options) (*ir.Module, error) {
	b, err := util.ReadSource(opt)
	if err != nil {
		return nil, err
	}
	m, err := ir.DecodeModule(b)
	if err != nil {
		return nil, err
	}
	if err := ir.Validate(m); err != nil {
		return nil, err
	}
	return m, nil
}
