package control

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/eliteGoblin/zenmode/internal/config"
	"github.com/eliteGoblin/zenmode/internal/domain"
)

const (
	statusActive   = "Zen mode is currently ACTIVE."
	statusInactive = "Zen mode is currently INACTIVE."

	prompt = "zen> "
)

// Window used when a schedule entry names only a day.
var (
	defaultStart = domain.TimeOfDay{Hour: 9}
	defaultEnd   = domain.TimeOfDay{Hour: 17}
)

const helpText = `Commands:
  add <identifier>                 block an application (exact argv token)
  schedule                         show the block schedule
  schedule <Day[=HH:MM-HH:MM]>...  replace the schedule (day alone means 09:00-17:00)
  schedule clear                   remove every window
  toggle                           switch zen mode on or off
  start | stop                     switch zen mode on | off
  status                           show whether zen mode is active
  list                             show blocked applications
  help                             show this text
  quit                             stop zen mode and exit`

// Console is a line-oriented front end for a Controller.
type Console struct {
	ctrl *Controller
	in   io.Reader
	out  io.Writer
}

// NewConsole creates a console reading commands from in and writing to out.
func NewConsole(ctrl *Controller, in io.Reader, out io.Writer) *Console {
	return &Console{ctrl: ctrl, in: in, out: out}
}

// Run reads commands until quit, end of input or ctx is canceled.
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		readErr <- scanner.Err()
	}()

	c.printStatus()
	for {
		fmt.Fprint(c.out, prompt)
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out)
			return ctx.Err()
		case err := <-readErr:
			fmt.Fprintln(c.out)
			return err
		case line := <-lines:
			if c.Exec(ctx, line) {
				return nil
			}
		}
	}
}

// Exec runs one command line and reports whether the console should exit.
func (c *Console) Exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "add":
		// The identifier is the rest of the line; paths may contain spaces.
		id := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))
		if id == "" {
			fmt.Fprintln(c.out, "usage: add <identifier>")
			return false
		}
		if err := c.ctrl.AddApplication(id); err != nil {
			c.printErr(err)
			return false
		}
		fmt.Fprintf(c.out, "Blocked %s\n", id)

	case "schedule":
		c.schedule(args)

	case "toggle":
		if _, err := c.ctrl.Toggle(ctx); err != nil {
			c.printErr(err)
		}
		c.printStatus()

	case "start":
		if err := c.ctrl.Start(ctx); err != nil && !errors.Is(err, domain.ErrLoopAlreadyStarted) {
			c.printErr(err)
		}
		c.printStatus()

	case "stop":
		c.ctrl.Stop()
		c.printStatus()

	case "status":
		c.printStatus()
		fmt.Fprintf(c.out, "Schedule: %s\n", c.ctrl.Schedule())
		if c.ctrl.InWindow() {
			fmt.Fprintln(c.out, "Inside a block window now.")
		} else {
			fmt.Fprintln(c.out, "Outside every block window now.")
		}
		if stats := c.ctrl.Stats(); stats.Scans > 0 {
			fmt.Fprintf(c.out, "Scans: %d, processes killed: %d\n", stats.Scans, stats.Killed)
		}

	case "list":
		items := c.ctrl.Blocklist().Items()
		if len(items) == 0 {
			fmt.Fprintln(c.out, "Blocked applications: (none)")
			return false
		}
		fmt.Fprintln(c.out, "Blocked applications:")
		for _, id := range items {
			fmt.Fprintf(c.out, "  - %s\n", id)
		}

	case "help", "?":
		fmt.Fprintln(c.out, helpText)

	case "quit", "exit":
		c.ctrl.Stop()
		return true

	default:
		fmt.Fprintf(c.out, "unknown command %q (try 'help')\n", fields[0])
	}
	return false
}

func (c *Console) schedule(args []string) {
	if len(args) == 0 {
		fmt.Fprintf(c.out, "Schedule: %s\n", c.ctrl.Schedule())
		return
	}

	var schedule domain.Schedule
	if !(len(args) == 1 && strings.EqualFold(args[0], "clear")) {
		windows := make([]domain.Window, 0, len(args))
		for _, arg := range args {
			w, err := parseEntry(arg)
			if err != nil {
				c.printErr(err)
				return
			}
			windows = append(windows, w)
		}
		var err error
		if schedule, err = domain.NewSchedule(windows...); err != nil {
			c.printErr(err)
			return
		}
	}

	c.ctrl.SetSchedule(schedule)
	fmt.Fprintf(c.out, "Schedule: %s\n", schedule)
}

func parseEntry(arg string) (domain.Window, error) {
	if strings.Contains(arg, "=") {
		return config.ParseWindow(arg)
	}
	day, err := domain.ParseWeekday(arg)
	if err != nil {
		return domain.Window{}, err
	}
	return domain.Window{Day: day, Start: defaultStart, End: defaultEnd}, nil
}

func (c *Console) printStatus() {
	if c.ctrl.Running() {
		fmt.Fprintln(c.out, statusActive)
	} else {
		fmt.Fprintln(c.out, statusInactive)
	}
}

func (c *Console) printErr(err error) {
	fmt.Fprintf(c.out, "error: %v\n", err)
}
