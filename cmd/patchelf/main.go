// Command patchelf edits PT_INTERP, DT_RPATH/DT_RUNPATH, DT_NEEDED,
// DT_SONAME, symbol versions, dynamic-symbol names, the executable-stack
// flag, and the OS ABI byte of an already-linked ELF file in place.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "patchelf:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	o := &options{}

	cmd := &cobra.Command{
		Use:           "patchelf [flags] FILE...",
		Short:         "modify dynamic linker properties of ELF executables and shared objects",
		Version:       "1.0.0",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			o.inputs = args
			if o.setRPath, err = expandArg(o.setRPath); err != nil {
				return err
			}
			if o.addRPath, err = expandArg(o.addRPath); err != nil {
				return err
			}
			return run(o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.setInterpreter, "set-interpreter", "", "replace the .interp path")
	f.BoolVar(&o.printInterp, "print-interpreter", false, "print the .interp path")
	f.Uint64Var(&o.pageSize, "page-size", 0, "override the machine-derived page size")
	f.BoolVar(&o.printOSABI, "print-os-abi", false, "print e_ident[EI_OSABI]")
	f.StringVar(&o.setOSABI, "set-os-abi", "", "set e_ident[EI_OSABI] by name")
	f.BoolVar(&o.printSoname, "print-soname", false, "print DT_SONAME")
	f.StringVar(&o.setSoname, "set-soname", "", "set DT_SONAME")
	f.StringVar(&o.setRPath, "set-rpath", "", "set DT_RPATH/DT_RUNPATH")
	f.StringVar(&o.addRPath, "add-rpath", "", "append to DT_RPATH/DT_RUNPATH")
	f.BoolVar(&o.removeRPath, "remove-rpath", false, "remove DT_RPATH/DT_RUNPATH")
	f.BoolVar(&o.shrinkRPath, "shrink-rpath", false, "drop unused rpath entries")
	f.BoolVar(&o.printRPath, "print-rpath", false, "print DT_RPATH/DT_RUNPATH")
	f.StringVar(&o.allowedRPathPrefixes, "allowed-rpath-prefixes", "", "colon-separated prefix filter for --shrink-rpath")
	f.BoolVar(&o.forceRPath, "force-rpath", false, "use DT_RPATH instead of DT_RUNPATH")
	f.StringArrayVar(&o.addNeeded, "add-needed", nil, "add a DT_NEEDED entry")
	f.StringArrayVar(&o.removeNeeded, "remove-needed", nil, "remove a DT_NEEDED entry")
	f.StringArrayVar(&o.replaceNeeded, "replace-needed", nil, "OLD=NEW: rename a DT_NEEDED entry")
	f.BoolVar(&o.printNeeded, "print-needed", false, "print DT_NEEDED entries")
	f.StringArrayVar(&o.clearSymbolVersion, "clear-symbol-version", nil, "clear a dynamic symbol's version requirement")
	f.StringVar(&o.renameDynSyms, "rename-dynamic-symbols", "", "map file of old/new dynamic symbol names")
	f.BoolVar(&o.addDebugTag, "add-debug-tag", false, "ensure a DT_DEBUG entry exists")
	f.BoolVar(&o.noDefaultLib, "no-default-lib", false, "set DF_1_NODEFLIB")
	f.BoolVar(&o.printExecstack, "print-execstack", false, "print the executable-stack state")
	f.BoolVar(&o.clearExecstack, "clear-execstack", false, "mark the stack non-executable")
	f.BoolVar(&o.setExecstack, "set-execstack", false, "mark the stack executable")
	f.BoolVar(&o.noSort, "no-sort", false, "skip program/section header sorting")
	f.StringVar(&o.output, "output", "", "write the result to a distinct path")
	f.BoolVar(&o.debug, "debug", false, "verbose diagnostics")

	return cmd
}
