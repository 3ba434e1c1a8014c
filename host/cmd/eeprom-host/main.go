package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"spieeprom/core"
	"spieeprom/demo"
	"spieeprom/eeprom"
	"spieeprom/host/periph"
	"spieeprom/host/serial"
	"spieeprom/internal/simchip"
)

// commonFlags are accepted by every command
type commonFlags struct {
	config  string
	spiPort string
	cs      uint
	hold    uint
	policy  string
	sim     bool
	verbose bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.config, "config", "", "JSON config file")
	fs.StringVar(&c.spiPort, "spi", "SPI0.0", "SPI port name")
	fs.UintVar(&c.cs, "cs", 8, "Chip select GPIO number")
	fs.UintVar(&c.hold, "hold", 25, "HOLD GPIO number")
	fs.StringVar(&c.policy, "policy", "poll_status", "Write wait policy (poll_status, fixed_delay)")
	fs.BoolVar(&c.sim, "sim", false, "Use a simulated EEPROM instead of hardware")
	fs.BoolVar(&c.verbose, "verbose", false, "Enable verbose output")
}

// hostConfig loads the config file, then applies the flags given
// explicitly on the command line on top of it.
func (c *commonFlags) hostConfig(fs *flag.FlagSet) (*HostConfig, error) {
	cfg := DefaultHostConfig()
	if c.config != "" {
		var err error
		if cfg, err = LoadConfigFile(c.config); err != nil {
			return nil, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "spi":
			cfg.SPIPort = c.spiPort
		case "cs":
			cfg.CSPin = uint32(c.cs)
		case "hold":
			cfg.HoldPin = uint32(c.hold)
		case "policy":
			cfg.WaitPolicy = c.policy
		}
	})
	return cfg, nil
}

func newLogger(verbose bool) *zap.SugaredLogger {
	var logger *zap.Logger
	var err error
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.Encoding = "console"
		logger, err = cfg.Build()
	}
	if err != nil {
		logger = zap.NewNop()
	}
	return logger.Sugar()
}

// openSession wires the session to hardware through periph.io, or to a
// simulated chip with -sim. The returned close func releases everything.
func openSession(cfg *HostConfig, sim bool, log *zap.SugaredLogger) (*eeprom.Session, func() error, error) {
	sessCfg, err := cfg.SessionConfig()
	if err != nil {
		return nil, nil, err
	}
	sessCfg.Debug = func(line string) { log.Debug(line) }

	if sim {
		chip := simchip.New(sessCfg.CSPin, sessCfg.HoldPin, 1<<16)
		chip.WriteCycle = 5 * time.Millisecond
		if cfg.PageSize > 0 {
			chip.SetPageSize(int(cfg.PageSize))
		}
		sess, err := eeprom.NewSession(chip, chip, sessCfg)
		if err != nil {
			return nil, nil, err
		}
		log.Infow("using simulated EEPROM", "size", 1<<16)
		return sess, sess.Close, nil
	}

	if err := periph.Init(); err != nil {
		return nil, nil, err
	}
	spi, err := periph.OpenSPI(cfg.SPIPort)
	if err != nil {
		return nil, nil, err
	}
	sess, err := eeprom.NewSession(spi, periph.NewGPIODriver(), sessCfg)
	if err != nil {
		return nil, nil, multierr.Append(err, spi.Close())
	}
	log.Infow("opened EEPROM", "port", spi.String(), "cs", cfg.CSPin, "hold", cfg.HoldPin,
		"rate", cfg.Rate, "policy", cfg.WaitPolicy)

	return sess, func() error { return multierr.Append(sess.Close(), spi.Close()) }, nil
}

func parseAddress(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return uint16(v), nil
}

func main() {
	if len(os.Args) < 2 {
		printHelp()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "demo":
		err = runDemo(ctx, args)
	case "read":
		err = runRead(ctx, args)
	case "write":
		err = runWrite(ctx, args)
	case "status":
		err = runStatus(ctx, args)
	case "monitor":
		err = runMonitor(ctx, args)
	case "help", "-h", "--help":
		printHelp()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s (run with 'help' for available commands)\n", cmd)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("\nUsage: eeprom-host <command> [flags]")
	fmt.Println("\nAvailable commands:")
	fmt.Println("  demo           - Read, write HELLOWORLD, read back and verify")
	fmt.Println("  read           - Read bytes (-addr, -len)")
	fmt.Println("  write          - Write bytes (-addr, -data or -hex)")
	fmt.Println("  status         - Read the STATUS register")
	fmt.Println("  monitor        - Print the firmware console from a serial port")
	fmt.Println()
}

// withSession parses the common flags, opens a session and runs fn.
func withSession(name string, args []string, setup func(*flag.FlagSet), fn func(*eeprom.Session, *zap.SugaredLogger) error) (err error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	if setup != nil {
		setup(fs)
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	log := newLogger(common.verbose)
	defer func() { _ = log.Sync() }()

	cfg, err := common.hostConfig(fs)
	if err != nil {
		return err
	}
	sess, closeSession, err := openSession(cfg, common.sim, log)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, closeSession())
	}()

	return fn(sess, log)
}

func runDemo(ctx context.Context, args []string) error {
	var addr string
	var message string
	setup := func(fs *flag.FlagSet) {
		fs.StringVar(&addr, "addr", "0xFF", "Start address")
		fs.StringVar(&message, "message", demo.DefaultMessage, "Message to write")
	}

	return withSession("demo", args, setup, func(sess *eeprom.Session, log *zap.SugaredLogger) error {
		opts := demo.DefaultOptions()
		a, err := parseAddress(addr)
		if err != nil {
			return err
		}
		opts.Address = a
		opts.Message = []byte(message)

		report, err := demo.Run(ctx, sess, core.NewConsole(os.Stdout), opts)
		if err != nil {
			return err
		}
		if !report.Match {
			return fmt.Errorf("read back %q, wrote %q", report.ReadBack, opts.Message)
		}
		log.Infow("persistence verified", "crc", core.Hex16(report.Read))
		return nil
	})
}

func runRead(ctx context.Context, args []string) error {
	var addr string
	var n int
	setup := func(fs *flag.FlagSet) {
		fs.StringVar(&addr, "addr", "0xFF", "Start address")
		fs.IntVar(&n, "len", 10, "Number of bytes")
	}

	return withSession("read", args, setup, func(sess *eeprom.Session, log *zap.SugaredLogger) error {
		a, err := parseAddress(addr)
		if err != nil {
			return err
		}
		data, err := sess.ReadBytes(ctx, a, n)
		if err != nil {
			return err
		}
		core.NewConsole(os.Stdout).WriteHex("", data)
		return nil
	})
}

func runWrite(ctx context.Context, args []string) error {
	var addr, text, hexData string
	setup := func(fs *flag.FlagSet) {
		fs.StringVar(&addr, "addr", "0xFF", "Start address")
		fs.StringVar(&text, "data", "", "Text to write")
		fs.StringVar(&hexData, "hex", "", "Hex bytes to write, e.g. 48454C4C4F")
	}

	return withSession("write", args, setup, func(sess *eeprom.Session, log *zap.SugaredLogger) error {
		a, err := parseAddress(addr)
		if err != nil {
			return err
		}
		data := []byte(text)
		if hexData != "" {
			if data, err = parseHex(hexData); err != nil {
				return err
			}
		}

		start := time.Now()
		if err := sess.Write(ctx, a, data); err != nil {
			return err
		}
		log.Infow("write complete", "addr", a, "bytes", len(data), "elapsed", time.Since(start))
		return nil
	})
}

func runStatus(ctx context.Context, args []string) error {
	return withSession("status", args, nil, func(sess *eeprom.Session, log *zap.SugaredLogger) error {
		st, err := sess.ReadStatus(ctx)
		if err != nil {
			return err
		}
		console := core.NewConsole(os.Stdout)
		console.WriteLine("STATUS : [" + core.Hex8(st.Raw) + "]")
		console.WriteField("WIP", strconv.FormatBool(st.WriteInProgress))
		console.WriteField("WEL", strconv.FormatBool(st.WriteEnableLatch))
		console.WriteField("BP", core.Itoa(int(st.BlockProtect)))
		console.WriteField("WPEN", strconv.FormatBool(st.WriteProtectEnable))
		return nil
	})
}

func runMonitor(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("monitor", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	device := fs.String("device", "", "Serial device path (overrides config)")
	baud := fs.Int("baud", 0, "Baud rate (ignored for USB CDC)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	log := newLogger(common.verbose)
	defer func() { _ = log.Sync() }()

	cfg, err := common.hostConfig(fs)
	if err != nil {
		return err
	}
	portCfg := cfg.SerialPortConfig()
	if *device != "" {
		portCfg.Device = *device
	}
	if *baud != 0 {
		portCfg.Baud = *baud
	}

	port, err := serial.Open(portCfg)
	if err != nil {
		return err
	}
	defer port.Close()
	log.Infow("monitoring console", "device", portCfg.Device, "baud", portCfg.Baud)

	err = serial.Monitor(ctx, port, func(line string) {
		fmt.Println(line)
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func parseHex(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("odd number of hex digits in %q", s)
	}
	out := make([]byte, len(s)/2)
	for i := range out {
		v, err := strconv.ParseUint(s[2*i:2*i+2], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid hex %q: %w", s, err)
		}
		out[i] = byte(v)
	}
	return out, nil
}
