package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/bigbag/amplink-programmer/internal/bridge"
	"github.com/bigbag/amplink-programmer/internal/detect"
	"github.com/bigbag/amplink-programmer/internal/ihex"
	"github.com/bigbag/amplink-programmer/internal/programmer"
	"github.com/bigbag/amplink-programmer/internal/protocol"
	"github.com/bigbag/amplink-programmer/internal/serial"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	clockFlag     string
	flash2Flag    string
	flash3Flag    string
	flash4Flag    string
	i2cAddrFlag   string
	noBurnFlag    bool
	skipFlashFlag bool
	skipClockFlag bool
	csFlag        int
)

func main() {
	defer glog.Flush()

	rootCmd := &cobra.Command{
		Use:   "amplink-programmer",
		Short: "Program amplifier boards through the AmPLink USB bridge",
		Long: `AmPLink Programmer writes Intel HEX images into the three SPI flash
chips of an amplifier processor board and configures its I2C clock
generator, burning the configuration into OTP memory.

The AmPLink is an FT4232H bridge: channel A is I2C, B is SPI, C drives
the board mux pins and D the bridge's own control lines.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	// Program command
	programCmd := &cobra.Command{
		Use:   "program",
		Short: "Program flash chips and clock generator",
		Long: `Program every target in order: flash CS2, CS3 and CS4, then the clock.

A failed target does not stop the others. The clock configuration is
burned into OTP memory only when it was written without error.

Use --no-burn to write the clock registers without burning them.`,
		Args: cobra.NoArgs,
		RunE: runProgram,
	}
	programCmd.Flags().StringVar(&clockFlag, "clock", protocol.DefaultClockFile, "Clock configuration hex file")
	programCmd.Flags().StringVar(&flash2Flag, "flash2", protocol.DefaultFlash2File, "Flash CS2 hex file")
	programCmd.Flags().StringVar(&flash3Flag, "flash3", protocol.DefaultFlash3File, "Flash CS3 hex file")
	programCmd.Flags().StringVar(&flash4Flag, "flash4", protocol.DefaultFlash4File, "Flash CS4 hex file")
	programCmd.Flags().StringVar(&i2cAddrFlag, "i2c-addr", fmt.Sprintf("0x%02X", protocol.DefaultClockAddress), "Clock I2C address (hex)")
	programCmd.Flags().BoolVar(&noBurnFlag, "no-burn", false, "Do not burn the clock configuration into OTP")
	programCmd.Flags().BoolVar(&skipFlashFlag, "skip-flash", false, "Skip the flash chips")
	programCmd.Flags().BoolVar(&skipClockFlag, "skip-clock", false, "Skip the clock generator")

	// Erase command
	eraseCmd := &cobra.Command{
		Use:   "erase",
		Short: "Erase one flash chip",
		Args:  cobra.NoArgs,
		RunE:  runErase,
	}
	eraseCmd.Flags().IntVar(&csFlag, "cs", 2, "Chip select (2, 3 or 4)")

	// Inspect command
	inspectCmd := &cobra.Command{
		Use:   "inspect <file.hex>",
		Short: "Validate a hex file and show its layout",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}

	// Info command
	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Show bridge info",
		Long:  "Detect the AmPLink bridge and show its channels.",
		RunE:  runInfo,
	}

	// Version command
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("amplink-programmer %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available serial ports",
		RunE:  runList,
	}

	rootCmd.AddCommand(programCmd, eraseCmd, inspectCmd, infoCmd, versionCmd, listCmd)

	if err := rootCmd.Execute(); err != nil {
		glog.Flush()
		os.Exit(1)
	}
}

// buildPlan turns the program flags into a plan.
func buildPlan() (programmer.Plan, error) {
	addr, err := parseAddress(i2cAddrFlag)
	if err != nil {
		return programmer.Plan{}, err
	}

	plan := programmer.Plan{
		Flash: []programmer.FlashTarget{
			{CS: protocol.CS2, Path: flash2Flag},
			{CS: protocol.CS3, Path: flash3Flag},
			{CS: protocol.CS4, Path: flash4Flag},
		},
		Clock:        clockFlag,
		ClockAddress: addr,
		Burn:         !noBurnFlag,
	}
	if skipFlashFlag {
		for i := range plan.Flash {
			plan.Flash[i].Path = ""
		}
	}
	if skipClockFlag {
		plan.Clock = ""
	}
	return plan, nil
}

func openProgrammer() (*bridge.Bridge, *programmer.Programmer, error) {
	b, err := bridge.Open(bridge.DefaultConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open bridge: %w", err)
	}

	p := programmer.New(b.SPI, b.I2C, b.GPIO, b.Ctrl)
	if err := p.Init(); err != nil {
		b.Close()
		return nil, nil, fmt.Errorf("failed to initialize bridge: %w", err)
	}
	return b, p, nil
}

func runProgram(cmd *cobra.Command, args []string) error {
	plan, err := buildPlan()
	if err != nil {
		return err
	}

	fmt.Println("Opening AmPLink...")
	b, p, err := openProgrammer()
	if err != nil {
		return err
	}
	defer b.Close()

	var (
		bar     *progressbar.ProgressBar
		current string
	)
	p.SetProgressCallback(func(target string, read, total int64) {
		if target != current {
			if bar != nil {
				bar.Finish()
			}
			current = target
			bar = progressbar.NewOptions64(total,
				progressbar.OptionSetDescription(target),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowBytes(true),
				progressbar.OptionSetPredictTime(true),
				progressbar.OptionThrottle(100),
				progressbar.OptionClearOnFinish(),
			)
		}
		bar.Set64(read)
	})

	results := p.Run(plan)
	if bar != nil {
		bar.Finish()
	}

	fmt.Println("\nSummary:")
	for _, r := range results {
		switch {
		case r.Skipped:
			fmt.Printf("  %-10s skipped\n", r.Target)
		case r.Err != nil:
			fmt.Printf("  %-10s FAILED  %s: %v\n", r.Target, r.Path, r.Err)
		default:
			fmt.Printf("  %-10s ok      %s\n", r.Target, r.Path)
		}
	}

	if programmer.Failed(results) {
		return fmt.Errorf("programming failed")
	}
	fmt.Println("Done!")
	return nil
}

func runErase(cmd *cobra.Command, args []string) error {
	cs, ok := protocol.ParseChipSelect(csFlag)
	if !ok {
		return fmt.Errorf("invalid chip select %d", csFlag)
	}

	b, p, err := openProgrammer()
	if err != nil {
		return err
	}
	defer b.Close()

	fmt.Printf("Erasing flash %s...\n", cs)
	if err := p.EraseFlash(cs); err != nil {
		return err
	}
	fmt.Println("Erase complete!")
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	path := args[0]

	s, err := ihex.Inspect(path)
	if err != nil {
		return err
	}

	fmt.Printf("File:      %s\n", path)
	fmt.Printf("Records:   %d data\n", s.DataRecords)
	fmt.Printf("Bytes:     %d\n", s.Bytes)
	if s.DataRecords > 0 {
		fmt.Printf("Range:     0x%08X - 0x%08X\n", s.Low, s.High)
	}
	fmt.Printf("Segments:  %d\n", len(s.Segments))
	for _, seg := range s.Segments {
		fmt.Printf("  0x%08X  %d bytes\n", seg.Address, seg.Size)
	}
	return nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	fmt.Println("Scanning for AmPLink...")
	r, err := detect.DetectBridge()
	if err != nil {
		return err
	}

	fmt.Printf("Found %s with %d channel(s):\n", r.Name(), len(r.Channels))
	names := []string{"I2C", "SPI", "GPIO", "CTRL"}
	for i, c := range r.Channels {
		fmt.Printf("  %d: %-5s %s (%04X:%04X)\n", c.Index, names[i], c.Name, c.VendorID, c.DeviceID)
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	ports, err := serial.ListPorts()
	if err != nil {
		return err
	}

	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}

	bridgePorts, err := serial.ListBridgePorts()
	if err != nil {
		glog.Warningf("USB details unavailable: %v", err)
	}
	isBridge := make(map[string]bool)
	for _, p := range bridgePorts {
		isBridge[p.Name] = true
	}

	fmt.Println("Available serial ports:")
	for _, p := range ports {
		if isBridge[p] {
			fmt.Printf("  %s (AmPLink)\n", p)
			continue
		}
		fmt.Printf("  %s\n", p)
	}
	return nil
}
