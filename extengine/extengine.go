// Package extengine drives a child UCI engine over pipes as an alternative
// leaf-value source: each query sets a position, runs a 25ms search and
// converts the last reported score into a value in [-1, 1].
package extengine

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/chewxy/math32"
	"github.com/hashicorp/go-multierror"
	"github.com/notnil/chess"
	"github.com/pkg/errors"
)

// Client is a running child engine. It is owned by the search worker and
// queried serially; one Client serves one search.
type Client struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
}

// Start spawns the engine command with piped stdin/stdout.
func Start(command string) (*Client, error) {
	cmd := exec.Command(command)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "stdout pipe")
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "spawn %q", command)
	}
	return &Client{cmd: cmd, stdin: stdin, stdout: bufio.NewReader(stdout)}, nil
}

// Value implements mcts.ValueSource: the child searches the position for
// 25ms and the last score cp / score mate seen before its bestmove is
// converted into [-1, 1]. A mate score triggers an immediate stop.
func (c *Client) Value(pos *chess.Position) (float32, error) {
	if _, err := fmt.Fprintf(c.stdin, "position fen %s\n", pos.String()); err != nil {
		return 0, errors.Wrap(err, "write position")
	}
	if _, err := fmt.Fprintf(c.stdin, "go movetime 25\n"); err != nil {
		return 0, errors.Wrap(err, "write go")
	}
	return c.readValue()
}

func (c *Client) readValue() (float32, error) {
	var last float32
	for {
		line, err := c.stdout.ReadString('\n')
		if err != nil {
			return 0, errors.Wrap(err, "read engine output")
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "bestmove":
			return last, nil
		case "info":
			kind, n, ok := scoreField(fields)
			if !ok {
				continue
			}
			switch kind {
			case "cp":
				last = CentipawnValue(n)
			case "mate":
				last = MateValue(n)
				if _, err := io.WriteString(c.stdin, "stop\n"); err != nil {
					return 0, errors.Wrap(err, "write stop")
				}
			}
		}
	}
}

// scoreField scans an info line for "score cp <n>" or "score mate <n>".
func scoreField(fields []string) (kind string, n int, ok bool) {
	for i := 0; i+2 < len(fields); i++ {
		if fields[i] != "score" {
			continue
		}
		kind = fields[i+1]
		if kind != "cp" && kind != "mate" {
			continue
		}
		v, err := strconv.Atoi(fields[i+2])
		if err != nil {
			return "", 0, false
		}
		return kind, v, true
	}
	return "", 0, false
}

// CentipawnValue maps a centipawn score onto [-1, 1] with the logistic
// curve 2*sigmoid(cp/400) - 1.
func CentipawnValue(cp int) float32 {
	return 2/(1+math32.Pow(10, -(float32(cp)/100)/4)) - 1
}

// MateValue maps a mate-in-M score onto [-1, 1] as sign(M)*(1 - 0.01*|M|):
// the magnitude shrinks by 0.01 per ply, so shorter mates lie further from
// 0. For |M| above 100 the result changes sign; it is clamped to [-1, 1].
func MateValue(mate int) float32 {
	var v float32
	if mate > 0 {
		v = 1 - float32(mate)*0.01
	} else {
		v = -1 + float32(-mate)*0.01
	}
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return v
}

// Close kills and reaps the child.
func (c *Client) Close() error {
	var errs error
	if err := c.stdin.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if c.cmd.Process != nil {
		if err := c.cmd.Process.Kill(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	// Wait returns an error after Kill; only the reap matters here.
	_ = c.cmd.Wait()
	return errs
}
