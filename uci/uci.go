// Package uci implements the UCI front-end: a line parser that mutates the
// current game and relays search requests to a single worker goroutine over
// a channel, plus the shared stop flag the worker observes between rollout
// batches.
package uci

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/notnil/chess"

	"github.com/divinenn/extengine"
	"github.com/divinenn/game"
	"github.com/divinenn/mcts"
)

// Engine wires the front-end to the search. The UCI reader and the search
// worker share the request channel, the atomic stop flag and the output
// writer, which both of them write protocol lines to.
type Engine struct {
	name   string
	author string

	eval       mcts.Evaluator
	conf       mcts.Config
	extCommand string
	treeDump   string

	out  io.Writer
	game *chess.Game

	stop     atomic.Bool
	requests chan request
	done     chan struct{}
}

type request struct {
	game   *chess.Game
	limits mcts.Limits
}

// Option configures an Engine.
type Option func(*Engine)

// WithSearchConfig overrides the default search configuration.
func WithSearchConfig(conf mcts.Config) Option {
	return func(e *Engine) { e.conf = conf }
}

// WithExternalEval makes the worker spawn the given UCI engine command
// once per search as the leaf-value source.
func WithExternalEval(command string) Option {
	return func(e *Engine) { e.extCommand = command }
}

// WithTreeDump writes the final search tree of every search to path as a
// graphviz DOT file.
func WithTreeDump(path string) Option {
	return func(e *Engine) { e.treeDump = path }
}

// New returns an engine writing protocol output to out.
func New(eval mcts.Evaluator, out io.Writer, opts ...Option) *Engine {
	e := &Engine{
		name:   "DivineNN",
		author: "the DivineNN authors",
		eval:   eval,
		conf:   mcts.DefaultConfig(),
		out:    out,
		game:   game.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run reads UCI commands from in until quit or EOF, then drains the worker
// and returns. Malformed or unknown lines are ignored.
func (e *Engine) Run(in io.Reader) error {
	e.requests = make(chan request, 16)
	e.done = make(chan struct{})
	go e.worker()

	scanner := bufio.NewScanner(in)
loop:
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "uci":
			e.printf("id name %s\n", e.name)
			e.printf("id author %s\n", e.author)
			e.printf("uciok\n")
		case "isready":
			e.printf("readyok\n")
		case "ucinewgame":
			e.game = game.New()
		case "position":
			e.handlePosition(fields[1:])
		case "go":
			e.requests <- request{game: e.game.Clone(), limits: parseLimits(fields[1:])}
		case "stop":
			e.stop.Store(true)
		case "quit":
			break loop
		}
	}

	e.stop.Store(true)
	close(e.requests)
	<-e.done
	return scanner.Err()
}

// worker processes search requests serially. The stop flag is cleared when
// a request is accepted, so a stale stop cannot cancel the next search.
func (e *Engine) worker() {
	defer close(e.done)
	for req := range e.requests {
		e.stop.Store(false)

		var ext mcts.ValueSource
		var client *extengine.Client
		if e.extCommand != "" {
			var err error
			if client, err = extengine.Start(e.extCommand); err != nil {
				log.Fatalf("external evaluator spawn failed: %+v", err)
			}
			ext = client
		}

		s := &mcts.Searcher{Eval: e.eval, Ext: ext, Conf: e.conf, Stop: &e.stop, Out: e.out}
		res, err := s.Search(req.game, req.limits)
		if err != nil {
			log.Fatalf("search failed: %+v", err)
		}
		e.dumpTree(res.Tree)

		if client != nil {
			if err := client.Close(); err != nil {
				log.Printf("closing external evaluator: %v", err)
			}
		}
	}
}

// dumpTree writes the search tree as DOT when a dump path is configured.
func (e *Engine) dumpTree(root *mcts.Root) {
	if e.treeDump == "" || root == nil {
		return
	}
	dot, err := root.DOT()
	if err != nil {
		log.Printf("tree dump failed: %v", err)
		return
	}
	if err := os.WriteFile(e.treeDump, []byte(dot), 0644); err != nil {
		log.Printf("tree dump failed: %v", err)
		return
	}
	log.Printf("search tree written to %s", e.treeDump)
}

// handlePosition parses "position startpos|fen <FEN> [moves m1 m2 ...]".
// An illegal FEN or move is reported on stderr and the command ignored.
func (e *Engine) handlePosition(args []string) {
	if len(args) == 0 {
		return
	}

	var g *chess.Game
	moveStart := len(args)
	switch args[0] {
	case "startpos":
		g = game.New()
		for i, a := range args {
			if a == "moves" {
				moveStart = i + 1
				break
			}
		}
	case "fen":
		fenEnd := len(args)
		for i, a := range args[1:] {
			if a == "moves" {
				fenEnd = i + 1
				moveStart = i + 2
				break
			}
		}
		var err error
		if g, err = game.FromFEN(strings.Join(args[1:fenEnd], " ")); err != nil {
			log.Printf("position ignored: %v", err)
			return
		}
	default:
		return
	}

	for _, uciMove := range args[moveStart:] {
		m, err := game.ResolveMove(g, uciMove)
		if err != nil {
			log.Printf("position ignored: %v", err)
			return
		}
		if err := g.Move(m); err != nil {
			log.Printf("position ignored: illegal move %s: %v", uciMove, err)
			return
		}
	}
	e.game = g
}

// parseLimits extracts the time control from a "go" command's arguments.
func parseLimits(args []string) mcts.Limits {
	var l mcts.Limits
	ms := func(i int) (time.Duration, bool) {
		if i >= len(args) {
			return 0, false
		}
		v, err := strconv.Atoi(args[i])
		if err != nil {
			return 0, false
		}
		return time.Duration(v) * time.Millisecond, true
	}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "movetime":
			if d, ok := ms(i + 1); ok {
				l.MoveTime = d
				l.HasMoveTime = true
				i++
			}
		case "wtime":
			if d, ok := ms(i + 1); ok {
				l.WhiteTime = d
				l.HasClock = true
				i++
			}
		case "btime":
			if d, ok := ms(i + 1); ok {
				l.BlackTime = d
				l.HasClock = true
				i++
			}
		case "winc":
			if d, ok := ms(i + 1); ok {
				l.WhiteInc = d
				i++
			}
		case "binc":
			if d, ok := ms(i + 1); ok {
				l.BlackInc = d
				i++
			}
		}
	}
	return l
}

func (e *Engine) printf(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(e.out, format, args...); err != nil {
		log.Printf("write failed: %v", err)
	}
}
