// Package console is a line-oriented operator shell on the serial port (or
// stdin on hosts). Lines are split shell-style and mapped onto
// monitor/control requests.
package console

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/shlex"
	"golang.org/x/exp/slices"

	"smartbin-go/bus"
	"smartbin-go/errcode"
	"smartbin-go/types"
)

const DefaultTimeout = 10 * time.Second

// Command is a local command; it runs on the console goroutine.
type Command struct {
	Help string
	Run  func(args []string) error
}

// verbs are forwarded to monitor/control/<verb>.
var verbs = map[string]struct {
	verb string
	help string
}{
	"calibrate": {"calibrate", "re-run the ultrasonic calibration"},
	"measure":   {"measure", "run one measurement cycle now"},
	"toggle":    {"toggle_time", "jump the clock between day and night"},
	"status":    {"status", "print the current state"},
}

type Console struct {
	In      io.Reader
	Out     io.Writer
	Timeout time.Duration
	// Extra holds board-specific commands (e.g. the simulator's knobs).
	Extra map[string]Command

	conn *bus.Connection
}

func New(in io.Reader, out io.Writer) *Console {
	if out == nil {
		out = io.Discard
	}
	return &Console{In: in, Out: out, Timeout: DefaultTimeout, Extra: map[string]Command{}}
}

// Start reads lines until EOF or ctx is done. A nil In disables the
// console.
func (c *Console) Start(ctx context.Context, conn *bus.Connection) error {
	if c.In == nil {
		return nil
	}
	c.conn = conn
	go c.loop(ctx)
	return nil
}

func (c *Console) loop(ctx context.Context) {
	sc := bufio.NewScanner(c.In)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		c.Exec(ctx, sc.Text())
	}
}

// Exec runs one line and prints the outcome.
func (c *Console) Exec(ctx context.Context, line string) {
	if err := c.exec(ctx, line); err != nil {
		fmt.Fprintf(c.Out, "error: %v\r\n", err)
	}
}

func (c *Console) exec(ctx context.Context, line string) error {
	args, err := shlex.Split(line)
	if err != nil {
		return errcode.Wrap(errcode.InvalidParams, "console.parse", err)
	}
	if len(args) == 0 {
		return nil
	}
	name := strings.ToLower(args[0])

	if name == "help" || name == "?" {
		c.help()
		return nil
	}
	if v, ok := verbs[name]; ok {
		return c.request(ctx, v.verb)
	}
	if cmd, ok := c.Extra[name]; ok {
		return cmd.Run(args[1:])
	}
	return &errcode.E{C: errcode.UnknownVerb, Op: "console", Msg: name}
}

func (c *Console) request(ctx context.Context, verb string) error {
	if c.conn == nil {
		return &errcode.E{C: errcode.Unsupported, Op: "console." + verb, Msg: "not connected"}
	}
	rctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()
	m, err := c.conn.RequestWait(rctx, c.conn.NewMessage(bus.T("monitor", "control", verb), nil, false))
	if err != nil {
		return err
	}
	rep, ok := m.Payload.(types.ControlReply)
	if !ok {
		return &errcode.E{C: errcode.Error, Op: "console." + verb, Msg: fmt.Sprintf("unexpected reply %T", m.Payload)}
	}
	if !rep.OK {
		return &errcode.E{C: errcode.Error, Op: "console." + verb, Msg: rep.Error}
	}
	b, err := json.Marshal(rep.Value)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "%s\r\n", b)
	return nil
}

func (c *Console) help() {
	lines := []string{"help                 this list"}
	for name, v := range verbs {
		lines = append(lines, fmt.Sprintf("%-20s %s", name, v.help))
	}
	for name, cmd := range c.Extra {
		lines = append(lines, fmt.Sprintf("%-20s %s", name, cmd.Help))
	}
	slices.Sort(lines[1:])
	for _, l := range lines {
		fmt.Fprintf(c.Out, "%s\r\n", l)
	}
}
