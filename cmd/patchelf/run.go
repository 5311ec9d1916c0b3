package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/appsworld/go-patchelf/internal/elf"
)

// options collects every flag from the root command into the shape
// run() expects, decoupled from cobra's pflag types.
type options struct {
	setInterpreter string
	printInterp    bool

	pageSize uint64

	printOSABI bool
	setOSABI   string

	printSoname bool
	setSoname   string

	setRPath             string
	addRPath             string
	removeRPath          bool
	shrinkRPath          bool
	printRPath           bool
	allowedRPathPrefixes string
	forceRPath           bool

	addNeeded     []string
	removeNeeded  []string
	replaceNeeded []string // one OLD=NEW token per occurrence
	printNeeded   bool

	clearSymbolVersion []string
	renameDynSyms      string

	addDebugTag  bool
	noDefaultLib bool

	printExecstack bool
	clearExecstack bool
	setExecstack   bool

	noSort bool
	output string
	debug  bool

	inputs []string
}

func run(o *options) error {
	if o.debug || os.Getenv("PATCHELF_DEBUG") != "" {
		elf.Debug = true
	}
	if len(o.inputs) == 0 {
		return &elf.RequestError{Detail: "no input files given"}
	}
	if o.output != "" && len(o.inputs) != 1 {
		return &elf.RequestError{Detail: "--output requires exactly one input file"}
	}

	for _, path := range o.inputs {
		if err := processFile(o, path); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

func processFile(o *options, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}

	f, err := elf.NewFile(raw)
	if err != nil {
		return err
	}
	f.NoSort = o.noSort
	if o.pageSize > 0 {
		f.PageSize = o.pageSize
	}

	if err := applyQueries(f, o); err != nil {
		return err
	}
	if err := applyMutations(f, o); err != nil {
		return err
	}

	if !f.Changed() {
		return nil
	}

	out, err := f.Write()
	if err != nil {
		return err
	}

	dest := path
	if o.output != "" {
		dest = o.output
	}
	return atomicWrite(dest, out, fi.Mode())
}

func applyQueries(f *elf.File, o *options) error {
	if o.printInterp {
		s, ok, err := f.Interp()
		if err != nil {
			return err
		}
		if ok {
			fmt.Println(s)
		}
	}
	if o.printOSABI {
		fmt.Println(f.OSABI())
	}
	if o.printSoname {
		s, ok, err := f.Soname()
		if err != nil {
			return err
		}
		if ok {
			fmt.Println(s)
		}
	}
	if o.printRPath {
		s, _, err := f.RPath()
		if err != nil {
			return err
		}
		fmt.Println(s)
	}
	if o.printNeeded {
		names, err := f.Needed()
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Println(n)
		}
	}
	if o.printExecstack {
		fmt.Println(f.PrintExecstack().String())
	}
	return nil
}

func applyMutations(f *elf.File, o *options) error {
	if o.setInterpreter != "" {
		if err := f.SetInterpreter(o.setInterpreter); err != nil {
			return err
		}
	}
	if o.setOSABI != "" {
		if err := f.SetOSABI(o.setOSABI); err != nil {
			return err
		}
	}
	if o.setSoname != "" {
		if err := f.SetSoname(o.setSoname); err != nil {
			return err
		}
	}

	if o.setRPath != "" && o.addRPath != "" {
		return &elf.RequestError{Detail: "--set-rpath and --add-rpath are mutually exclusive"}
	}
	var prefixes []string
	if o.allowedRPathPrefixes != "" {
		prefixes = strings.Split(o.allowedRPathPrefixes, ":")
	}
	switch {
	case o.removeRPath:
		_, err := f.ModifyRPath(elf.RPathRemove, "", nil, o.forceRPath)
		if err != nil {
			return err
		}
	case o.setRPath != "":
		if _, err := f.ModifyRPath(elf.RPathSet, o.setRPath, nil, o.forceRPath); err != nil {
			return err
		}
	case o.addRPath != "":
		if _, err := f.ModifyRPath(elf.RPathAdd, o.addRPath, nil, o.forceRPath); err != nil {
			return err
		}
	case o.shrinkRPath:
		if _, err := f.ModifyRPath(elf.RPathShrink, "", prefixes, o.forceRPath); err != nil {
			return err
		}
	}

	if len(o.addNeeded) > 0 {
		if err := f.AddNeeded(o.addNeeded); err != nil {
			return err
		}
	}
	if len(o.removeNeeded) > 0 {
		if err := f.RemoveNeeded(o.removeNeeded); err != nil {
			return err
		}
	}
	if len(o.replaceNeeded) > 0 {
		renames := make(map[string]string, len(o.replaceNeeded))
		for _, pair := range o.replaceNeeded {
			old, newName, ok := strings.Cut(pair, "=")
			if !ok {
				return &elf.RequestError{Detail: "--replace-needed expects OLD=NEW"}
			}
			renames[old] = newName
		}
		if err := f.ReplaceNeeded(renames); err != nil {
			return err
		}
	}

	if len(o.clearSymbolVersion) > 0 {
		if err := f.ClearSymbolVersions(o.clearSymbolVersion); err != nil {
			return err
		}
	}

	if o.renameDynSyms != "" {
		renames, err := parseRenameMap(o.renameDynSyms)
		if err != nil {
			return err
		}
		if err := f.RenameDynamicSymbols(renames); err != nil {
			return err
		}
	}

	if o.addDebugTag {
		if err := f.AddDebugTag(); err != nil {
			return err
		}
	}
	if o.noDefaultLib {
		if err := f.NoDefaultLib(); err != nil {
			return err
		}
	}

	if o.clearExecstack && o.setExecstack {
		return &elf.RequestError{Detail: "--clear-execstack and --set-execstack are mutually exclusive"}
	}
	if o.clearExecstack {
		if err := f.SetExecstack(false); err != nil {
			return err
		}
	}
	if o.setExecstack {
		if err := f.SetExecstack(true); err != nil {
			return err
		}
	}

	return nil
}

// atomicWrite writes data to a temp file beside dest, fchmod's it to
// mode, then renames it over dest.
func atomicWrite(dest string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, filepath.Base(dest)+".patchelf-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, dest)
}
