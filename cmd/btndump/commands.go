package main

import (
	"errors"
	"fmt"
	"io"

	"btndump/config"
	"btndump/extract"
	"btndump/hexdump"
	"btndump/process"
	"btndump/process_blob"

	"github.com/spf13/cobra"
)

var (
	// pid is the process to attach to.
	pid int
	// processName is resolved to a pid when --pid is not given.
	processName string
	// fromDump is a directory written by `btndump save`, used instead of a live process.
	fromDump string
	// configFile replaces the built-in profiles.
	configFile string
	// profileName selects the profile, defaulting to the one for this platform.
	profileName string
	// format is json or yaml.
	format outputFormat
	// contextBytes is how much of the module to dump around a match.
	contextBytes int
	// noColor disables highlighting in hex dumps.
	noColor bool
	// output is the file to write, stdout when empty.
	output string
)

// New builds the command tree
func New() *cobra.Command {
	root := &cobra.Command{
		Use:   "btndump",
		Short: "Dump the input button table of a running game client.",
		Long: `btndump locates the client's button list through a byte signature,
walks it and prints every button name with its offset from the module base.

Offsets are read either from a live process or from a dump written by 'btndump save'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "Profile file to use instead of the built-in profiles.")

	extractCommand := &cobra.Command{
		Use:   "extract",
		Short: "Extract button offsets from a process or a saved dump.",
		RunE:  extractCmd,
	}
	extractCommand.Flags().IntVarP(&pid, "pid", "p", 0, "Process ID to read.")
	extractCommand.Flags().StringVarP(&processName, "process", "n", "", "Process name to read, the lowest matching pid wins.")
	extractCommand.Flags().StringVar(&fromDump, "from", "", "Dump directory to read instead of a live process.")
	extractCommand.Flags().StringVar(&profileName, "profile", config.DefaultProfileName(), "Offset profile.")
	format = formatJSON
	extractCommand.Flags().VarP(&format, "format", "f", "Output format, json or yaml.")
	extractCommand.Flags().StringVarP(&output, "output", "o", "", "Output file, stdout when empty.")
	root.AddCommand(extractCommand)

	saveCommand := &cobra.Command{
		Use:   "save",
		Short: "Save the readable memory of a process to a dump directory.",
		RunE:  saveCmd,
	}
	saveCommand.Flags().IntVarP(&pid, "pid", "p", 0, "Process ID to save.")
	saveCommand.Flags().StringVarP(&processName, "process", "n", "", "Process name to save.")
	saveCommand.Flags().StringVarP(&output, "output", "o", "", "Dump directory.")
	saveCommand.MarkFlagRequired("output")
	root.AddCommand(saveCommand)

	matchesCommand := &cobra.Command{
		Use:   "matches",
		Short: "Show every signature match and the address it resolves to.",
		Long: `Show every occurrence of the profile's signature in the module with a hex dump
around it. Use this to check a profile against a new build of the client.`,
		RunE: matchesCmd,
	}
	matchesCommand.Flags().IntVarP(&pid, "pid", "p", 0, "Process ID to read.")
	matchesCommand.Flags().StringVarP(&processName, "process", "n", "", "Process name to read.")
	matchesCommand.Flags().StringVar(&fromDump, "from", "", "Dump directory to read instead of a live process.")
	matchesCommand.Flags().StringVar(&profileName, "profile", config.DefaultProfileName(), "Offset profile.")
	matchesCommand.Flags().IntVar(&contextBytes, "context", 16, "Bytes of context to dump around each match.")
	matchesCommand.Flags().BoolVar(&noColor, "no-color", false, "Do not highlight the matched bytes.")
	root.AddCommand(matchesCommand)

	profilesCommand := &cobra.Command{
		Use:   "profiles",
		Short: "List the available offset profiles.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := loadProfiles()
			if err != nil {
				return err
			}
			return listProfiles(cmd.OutOrStdout(), profiles)
		},
	}
	root.AddCommand(profilesCommand)

	return root
}

func loadProfiles() (*config.File, error) {
	if configFile == "" {
		return config.Default(), nil
	}
	return config.Load(configFile)
}

func listProfiles(w io.Writer, profiles *config.File) error {
	for _, p := range profiles.Profiles {
		if _, err := fmt.Fprintf(w, "%-16s %-16s %s\n", p.Name, p.Module, p.Pattern); err != nil {
			return err
		}
	}
	return nil
}

// resolvePID turns --pid / --process into a pid
func resolvePID() (process.ProcessID, error) {
	if pid != 0 && processName != "" {
		return 0, errors.New("--pid and --process are mutually exclusive")
	}

	if pid != 0 {
		return process.ProcessID(pid), nil
	}

	if processName != "" {
		return findProcess(processName)
	}

	return 0, errors.New("one of --pid or --process is required")
}

// openTarget opens the dump given by --from or the live process given by --pid / --process
func openTarget() (process.Target, func(), error) {
	if fromDump != "" {
		if pid != 0 || processName != "" {
			return nil, nil, errors.New("--from cannot be combined with --pid or --process")
		}

		dump := process_blob.NewProcessDump()
		if err := dump.Load(fromDump); err != nil {
			return nil, nil, err
		}
		return dump, func() {}, nil
	}

	id, err := resolvePID()
	if err != nil {
		return nil, nil, err
	}

	proc, err := openProcess(id)
	if err != nil {
		return nil, nil, fmt.Errorf("attach to process %d: %w", id, err)
	}
	return proc, func() { proc.Close() }, nil
}

// loadOptions resolves --config / --profile into extraction options
func loadOptions() (extract.Options, error) {
	profiles, err := loadProfiles()
	if err != nil {
		return extract.Options{}, err
	}

	profile, err := profiles.Profile(profileName)
	if err != nil {
		return extract.Options{}, err
	}

	return extract.OptionsFromProfile(profile)
}

func extractCmd(cmd *cobra.Command, args []string) error {
	opts, err := loadOptions()
	if err != nil {
		return err
	}

	target, closeTarget, err := openTarget()
	if err != nil {
		return err
	}
	defer closeTarget()

	result, err := extract.New(opts).Run(target)
	if err != nil {
		return err
	}

	if output == "" {
		return writeRecords(cmd.OutOrStdout(), format, result.Records)
	}

	return writeRecordsFile(output, format, result.Records)
}

func saveCmd(cmd *cobra.Command, args []string) error {
	id, err := resolvePID()
	if err != nil {
		return err
	}

	proc, err := openProcess(id)
	if err != nil {
		return fmt.Errorf("attach to process %d: %w", id, err)
	}
	defer proc.Close()

	if err := proc.Save(output); err != nil {
		return fmt.Errorf("save dump: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Dump of process", id, "saved to", output)
	return nil
}

func matchesCmd(cmd *cobra.Command, args []string) error {
	opts, err := loadOptions()
	if err != nil {
		return err
	}

	target, closeTarget, err := openTarget()
	if err != nil {
		return err
	}
	defer closeTarget()

	scan, err := extract.New(opts).Matches(target)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s at %s: %d matches of %s\n", scan.Module.Name, scan.Module.Base.ToString(), len(scan.Matches), opts.Pattern.String())

	dumpOpts := hexdump.DefaultOptions()
	dumpOpts.Color = !noColor

	for i, m := range scan.Matches {
		if m.Err != nil {
			fmt.Fprintf(w, "\n#%d %s+0x%x (%s): %v\n", i, scan.Module.Name, m.Offset, m.Address.ToString(), m.Err)
		} else {
			fmt.Fprintf(w, "\n#%d %s+0x%x (%s) -> %s\n", i, scan.Module.Name, m.Offset, m.Address.ToString(), m.Head.ToString())
		}
		hexdump.Around(w, scan.Snapshot, scan.Module.Base, m.Offset, opts.Pattern.Len(), contextBytes, dumpOpts)
	}

	return nil
}
