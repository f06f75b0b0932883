// Package shell implements an interactive console for a local counter state.
package shell

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/dankorotin/countergo/cli/options"
	"github.com/dankorotin/countergo/pkg/cell"
	"github.com/dankorotin/countergo/pkg/config"
	"github.com/dankorotin/countergo/pkg/core"
	"github.com/dankorotin/countergo/pkg/core/storage"
	"github.com/dankorotin/countergo/pkg/core/storage/dbconfig"
	"github.com/dankorotin/countergo/pkg/encoding/address"
	"github.com/kballard/go-shellquote"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

const (
	engineKey           = "engine"
	exitFuncKey         = "exitFunc"
	readlineInstanceKey = "readlineKey"
)

var commands = []cli.Command{
	{
		Name:        "exit",
		Usage:       "Exit the console",
		Description: "Exit the console",
		Action:      handleExit,
	},
	{
		Name:        "state",
		Usage:       "Show the counter state",
		Description: "Show the counter address, total, execution count and root cell hash",
		Action:      handleState,
	},
	{
		Name:        "get",
		Usage:       "Show the current counter value",
		Description: "Show the current counter value, free of charge",
		Action:      handleGet,
	},
	{
		Name:      "send",
		Usage:     "Send an increment message",
		UsageText: `send <delta>`,
		Description: `send <delta>

<delta> is a mandatory 16-bit unsigned increment, example:
> send 5`,
		Action: handleSend,
	},
	{
		Name:      "raw",
		Usage:     "Send a raw message body",
		UsageText: `raw <base64>`,
		Description: `raw <base64>

<base64> is a mandatory base64-encoded cell bag holding the message body, example:
> raw YmFnMQEBBAAFoDLDzQ==`,
		Action: handleRaw,
	},
	{
		Name:        "cell",
		Usage:       "Show the root cell",
		Description: "Show the root cell hash, depth, payload and its bag-of-cells form",
		Action:      handleCell,
	},
	{
		Name:      "execs",
		Usage:     "Show execution records",
		UsageText: `execs [<start> [<count>]]`,
		Description: `execs [<start> [<count>]]

both parameters are optional, example:
> execs 0 10`,
		Action: handleExecs,
	},
	{
		Name:      "dump",
		Usage:     "Dump the counter state to a snapshot file",
		UsageText: `dump <file>`,
		Action:    handleDump,
	},
	{
		Name:      "restore",
		Usage:     "Restore the counter state from a snapshot file",
		UsageText: `restore <file>`,
		Action:    handleRestore,
	},
}

var completer *readline.PrefixCompleter

func init() {
	var pcItems []readline.PrefixCompleterInterface
	for _, c := range commands {
		if !c.Hidden {
			var flagsItems []readline.PrefixCompleterInterface
			for _, f := range c.Flags {
				names := strings.SplitN(f.GetName(), ", ", 2) // only long name will be offered
				flagsItems = append(flagsItems, readline.PcItem("--"+names[0]))
			}
			pcItems = append(pcItems, readline.PcItem(c.Name, flagsItems...))
		}
	}
	completer = readline.NewPrefixCompleter(pcItems...)
}

// Various errors.
var (
	ErrMissingParameter = errors.New("missing argument")
	ErrInvalidParameter = errors.New("can't parse argument")
)

// Shell is a console for a local counter state.
type Shell struct {
	engine *core.Engine
	app    *cli.App
}

// NewCommands returns the 'console' command.
func NewCommands() []cli.Command {
	return []cli.Command{{
		Name:   "console",
		Usage:  "start an interactive counter console",
		Action: startShell,
		Flags:  []cli.Flag{options.ConfigFile},
	}}
}

func startShell(ctx *cli.Context) error {
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	sh, err := New(os.Exit, &readline.Config{Prompt: "counter> "}, cfg)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	return sh.Run()
}

// New returns a new Shell using the given configuration. onExit is called on
// the console exit.
func New(onExit func(int), c *readline.Config, cfg config.Config) (*Shell, error) {
	if c.AutoComplete == nil {
		// Autocomplete commands on TAB.
		c.AutoComplete = completer
	}
	l, err := readline.NewEx(c)
	if err != nil {
		return nil, fmt.Errorf("failed to create readline instance: %w", err)
	}
	ctl := cli.NewApp()
	ctl.Name = "counter console"

	// Note: need to set empty `ctl.HelpName` and `ctl.UsageText`, otherwise
	// `filepath.Base(os.Args[0])` will be used which is `countergo`.
	ctl.HelpName = ""
	ctl.UsageText = ""

	ctl.Writer = l.Stdout()
	ctl.ErrWriter = l.Stderr()
	ctl.Version = config.Version
	ctl.Usage = "Interactive counter console"

	// Override default error handler in order not to exit on error.
	ctl.ExitErrHandler = func(context *cli.Context, err error) {}

	ctl.Commands = commands

	store, err := storage.NewStore(cfg.ApplicationConfiguration.DBConfiguration)
	if err != nil {
		writeErr(ctl.ErrWriter, fmt.Errorf("failed to open DB, clean in-memory storage will be used: %w", err))
		cfg.ApplicationConfiguration.DBConfiguration.Type = dbconfig.InMemoryDB
		store = storage.NewMemoryStore()
	}

	engine, err := core.NewEngine(cfg.ProtocolConfiguration, store, zap.NewNop())
	if err != nil {
		closeErr := store.Close()
		if closeErr != nil {
			writeErr(ctl.ErrWriter, fmt.Errorf("failed to close the DB: %w", closeErr))
		}
		return nil, cli.NewExitError(fmt.Errorf("could not initialize engine: %w", err), 1)
	}

	sh := Shell{
		engine: engine,
		app:    ctl,
	}
	sh.app.Metadata = map[string]interface{}{
		engineKey: engine,
		exitFuncKey: func(i int) {
			_ = engine.Close()
			onExit(i)
		},
		readlineInstanceKey: l,
	}
	return &sh, nil
}

// Run waits for user input from Stdin and executes the passed command.
func (sh *Shell) Run() error {
	l := getReadlineInstanceFromContext(sh.app)
	for {
		line, err := l.Readline()
		if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
			return nil // OK, stop execution.
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err) // Critical error, stop execution.
		}

		args, err := shellquote.Split(line)
		if err != nil {
			writeErr(sh.app.ErrWriter, fmt.Errorf("failed to parse arguments: %w", err))
			continue // Not a critical error, continue execution.
		}

		err = sh.app.Run(append([]string{"counter"}, args...))
		if err != nil {
			writeErr(sh.app.ErrWriter, err) // Various command/flags parsing errors and execution errors.
		}
	}
}

func getEngineFromContext(app *cli.App) *core.Engine {
	return app.Metadata[engineKey].(*core.Engine)
}

func getExitFuncFromContext(app *cli.App) func(int) {
	return app.Metadata[exitFuncKey].(func(int))
}

func getReadlineInstanceFromContext(app *cli.App) *readline.Instance {
	return app.Metadata[readlineInstanceKey].(*readline.Instance)
}

func handleExit(c *cli.Context) error {
	l := getReadlineInstanceFromContext(c.App)
	l.Close()
	exit := getExitFuncFromContext(c.App)
	fmt.Fprintln(c.App.Writer, "Bye!")
	exit(0)
	return nil
}

func handleState(c *cli.Context) error {
	e := getEngineFromContext(c.App)
	total, err := e.Total()
	if err != nil {
		return err
	}
	count, err := e.ExecutionCount()
	if err != nil {
		return err
	}
	root, err := e.RootCell()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "address: %s\ntotal: %d\nexecutions: %d\nroot hash: %s\nroot bits: %d\n",
		address.Uint160ToString(e.Address()), total, count, root.Hash().StringLE(), root.BitLen())
	return nil
}

func handleGet(c *cli.Context) error {
	e := getEngineFromContext(c.App)
	total, err := e.Total()
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, total)
	return nil
}

func handleSend(c *cli.Context) error {
	args := c.Args()
	if len(args) < 1 {
		return ErrMissingParameter
	}
	delta, err := strconv.ParseUint(args[0], 10, 16)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidParameter, err)
	}
	b := cell.NewBuilder()
	if err := b.WriteUint(delta, core.DeltaBits); err != nil {
		return err
	}
	return sendMessage(c, core.NewMessage(b.Build()))
}

func handleRaw(c *cli.Context) error {
	args := c.Args()
	if len(args) < 1 {
		return ErrMissingParameter
	}
	data, err := base64.StdEncoding.DecodeString(args[0])
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidParameter, err)
	}
	body, err := cell.DecodeBag(data)
	if err != nil {
		return fmt.Errorf("failed to decode message body: %w", err)
	}
	return sendMessage(c, core.NewMessage(body))
}

func sendMessage(c *cli.Context, msg *core.Message) error {
	e := getEngineFromContext(c.App)
	exec, err := e.HandleMessage(msg)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "executed: %d + %d = %d (gas: %d)\n",
		exec.PrevTotal, exec.Delta, exec.NewTotal, exec.GasConsumed)
	return nil
}

func handleCell(c *cli.Context) error {
	e := getEngineFromContext(c.App)
	root, err := e.RootCell()
	if err != nil {
		return err
	}
	bag, err := cell.EncodeBag(root)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "hash: %s\nbits: %d\nrefs: %d\ndepth: %d\npayload: %x\nbag: %s\n",
		root.Hash().StringLE(), root.BitLen(), root.RefsCount(), root.Depth(),
		root.Payload(), base64.StdEncoding.EncodeToString(bag))
	return nil
}

func handleExecs(c *cli.Context) error {
	var (
		start uint64
		count int
		err   error
	)
	args := c.Args()
	if len(args) > 0 {
		start, err = strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidParameter, err)
		}
	}
	if len(args) > 1 {
		count, err = strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidParameter, err)
		}
	}
	e := getEngineFromContext(c.App)
	execs, err := e.GetExecutions(start, count)
	if err != nil {
		return err
	}
	for _, exec := range execs {
		fmt.Fprintf(c.App.Writer, "%d: %d + %d = %d (gas: %d)\n",
			exec.Sequence, exec.PrevTotal, exec.Delta, exec.NewTotal, exec.GasConsumed)
	}
	return nil
}

func handleDump(c *cli.Context) error {
	args := c.Args()
	if len(args) < 1 {
		return ErrMissingParameter
	}
	e := getEngineFromContext(c.App)
	data, err := e.DumpState()
	if err != nil {
		return err
	}
	if err := os.WriteFile(args[0], data, 0o644); err != nil {
		return fmt.Errorf("can't write to file %s: %w", args[0], err)
	}
	fmt.Fprintf(c.App.Writer, "dumped %d bytes\n", len(data))
	return nil
}

func handleRestore(c *cli.Context) error {
	args := c.Args()
	if len(args) < 1 {
		return ErrMissingParameter
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("can't read file %s: %w", args[0], err)
	}
	e := getEngineFromContext(c.App)
	if err := e.RestoreState(data); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "state restored")
	return nil
}

func writeErr(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %s\n", err)
}
