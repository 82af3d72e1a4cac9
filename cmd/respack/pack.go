package main

import (
	"fmt"

	"github.com/ZanzyTHEbar/respack/respack/config"
	"github.com/ZanzyTHEbar/respack/respack/packager"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type packFlags struct {
	inputs       []string
	output       string
	packageName  string
	moduleName   string
	moduleNames  []string
	startID      string
	idDefined    string
	sysIDDefined string
	headers      []string
	threads      int
	forceWrite   bool
	overlap      bool
	append       bool
	combine      bool
	ignored      []string
	dependEntry  string
	dependIDs    []string
}

func newPackCmd() *cobra.Command {
	var f packFlags
	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Build the resource index and id headers of a module",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			applyPackFlags(cmd.Flags(), &f, &cfg.Pack)

			p, err := packager.New(cfg.Pack, afero.NewOsFs(), logger)
			if err != nil {
				return err
			}
			res, err := p.Pack(cmd.Context(), nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d ids written to %s (build %s)\n", len(res.IDs), res.IndexPath, res.BuildID)
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringSliceVarP(&f.inputs, "inputs", "i", nil, "Module directories, earlier inputs win")
	fl.StringVarP(&f.output, "output", "o", "", "Output directory")
	fl.StringVarP(&f.packageName, "package-name", "p", "", "Application package name")
	fl.StringVar(&f.moduleName, "module-name", "", "Name of the module being built")
	fl.StringSliceVar(&f.moduleNames, "modules", nil, "Every module of the application, used to derive the start id")
	fl.StringVarP(&f.startID, "start-id", "e", "", "First application id, hex")
	fl.StringVar(&f.idDefined, "id-defined", "", "Declaration document replacing the per-input declarations")
	fl.StringVar(&f.sysIDDefined, "sys-id-defined", "", "System declaration document")
	fl.StringSliceVarP(&f.headers, "headers", "r", nil, "Header files to generate (.txt, .js, .h)")
	fl.IntVarP(&f.threads, "threads", "j", 0, "Copy workers, 0 copies inline")
	fl.BoolVarP(&f.forceWrite, "force", "f", false, "Replace an existing build")
	fl.BoolVar(&f.overlap, "overlap", false, "Let later inputs overlay resources of earlier ones")
	fl.BoolVarP(&f.append, "append", "a", false, "Append inputs; the same resource in two inputs is an error")
	fl.BoolVarP(&f.combine, "combine", "z", false, "Inputs are resource directories themselves")
	fl.StringSliceVar(&f.ignored, "ignore", nil, "Gitignore style patterns of files not to pack")
	fl.StringVar(&f.dependEntry, "depend-entry", "", "Build output of the entry module this feature depends on")
	fl.StringSliceVar(&f.dependIDs, "depend-ids", nil, "Ids of the entry module index to import, hex")
	return cmd
}

// applyPackFlags overrides config values with the flags given on the command line.
func applyPackFlags(fl *pflag.FlagSet, f *packFlags, c *config.PackConfig) {
	set := func(name string, apply func()) {
		if fl.Changed(name) {
			apply()
		}
	}
	set("inputs", func() { c.Inputs = f.inputs })
	set("output", func() { c.Output = f.output })
	set("package-name", func() { c.PackageName = f.packageName })
	set("module-name", func() { c.ModuleName = f.moduleName })
	set("modules", func() { c.ModuleNames = f.moduleNames })
	set("start-id", func() { c.StartID = f.startID })
	set("id-defined", func() { c.IDDefined = f.idDefined })
	set("sys-id-defined", func() { c.SysIDDefined = f.sysIDDefined })
	set("headers", func() { c.Headers = f.headers })
	set("threads", func() { c.Threads = f.threads })
	set("force", func() { c.ForceWrite = f.forceWrite })
	set("overlap", func() { c.Overlap = f.overlap })
	set("append", func() { c.Append = f.append })
	set("combine", func() { c.Combine = f.combine })
	set("ignore", func() { c.IgnoredFiles = f.ignored })
	set("depend-entry", func() { c.DependEntry = f.dependEntry })
	set("depend-ids", func() { c.DependIDs = f.dependIDs })
}
