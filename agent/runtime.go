package agent

import (
	"io"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hexmatch/game"
	"github.com/hexmatch/proto"
)

// The runtime is a single-threaded state machine:
//
//	Start -> Recv <-> Send -> End
//
// Start consumes the referee's START frame and builds the board and
// strategy. Recv waits for the opponent's MOVE/SWAP or the final END.
// Send asks the strategy for a move within a slice of the remaining game
// budget and reports it. Either I/O direction failing drives the machine
// to End.
type state int

const (
	stateStart state = iota
	stateRecv
	stateSend
	stateEnd
)

// Game drives one match from an agent's point of view.
type Game struct {
	conn net.Conn
	kind StrategyKind

	board    *game.Board
	strategy Strategy

	player   game.Player
	opponent game.Player

	timer       time.Duration
	threadLimit uint32
	memLimitMiB uint32

	round int
	state state
	over  bool
}

// New prepares a runtime speaking to the referee over conn, using the
// given strategy backend once the game parameters arrive.
func New(conn net.Conn, kind StrategyKind) *Game {
	return &Game{
		conn:  conn,
		kind:  kind,
		state: stateStart,
	}
}

// Run executes the state machine until the game ends. The returned error
// is nil for a game that ran to the referee's END message and non-nil when
// the agent had to abandon the match.
func (g *Game) Run() error {
	var firstErr error

	for !g.over {
		var err error
		switch g.state {
		case stateStart:
			err = g.startHandler()
		case stateRecv:
			err = g.recvHandler()
		case stateSend:
			err = g.sendHandler()
		case stateEnd:
			g.endHandler()
		}

		if err != nil {
			logrus.WithError(err).Error("abandoning game")
			if firstErr == nil {
				firstErr = err
			}
			g.state = stateEnd
		}

		g.round++
	}

	return firstErr
}

func (g *Game) startHandler() error {
	msg, err := g.recv(proto.KindStart)
	if err != nil {
		return err
	}

	g.player = game.Player(msg.Start.Player)
	g.opponent = g.player.Opponent()
	g.timer = time.Duration(msg.Start.GameSecs) * time.Second
	g.threadLimit = msg.Start.ThreadLimit
	g.memLimitMiB = msg.Start.MemLimitMiB

	logrus.WithFields(logrus.Fields{
		"player":    g.player,
		"size":      msg.Start.BoardSize,
		"game_secs": msg.Start.GameSecs,
		"threads":   g.threadLimit,
		"mem_mib":   g.memLimitMiB,
	}).Info("received game parameters")

	board, err := game.NewBoard(int(msg.Start.BoardSize))
	if err != nil {
		return err
	}
	g.board = board

	strategy, err := newStrategy(g.kind, board, int(g.threadLimit), g.memLimitMiB, g.player)
	if err != nil {
		return errors.Wrap(err, "initialising strategy")
	}
	g.strategy = strategy

	switch g.player {
	case game.Black:
		g.state = stateSend
	case game.White:
		g.state = stateRecv
	}
	return nil
}

func (g *Game) recvHandler() error {
	msg, err := g.recv(proto.KindMove, proto.KindSwap, proto.KindEnd)
	if err != nil {
		return err
	}

	switch msg.Kind {
	case proto.KindMove:
		x, y := msg.Move.X, msg.Move.Y
		logrus.WithFields(logrus.Fields{"x": x, "y": y}).Info("opponent moved")

		if err := g.board.Play(g.opponent, int(x), int(y)); err != nil {
			return errors.Wrap(err, "applying opponent move")
		}
		g.strategy.Play(g.opponent, uint8(x), uint8(y))

		if g.round == 1 && g.shouldSwap(int(x), int(y)) {
			return g.sendSwap()
		}
		g.state = stateSend

	case proto.KindSwap:
		logrus.Info("opponent swapped")

		g.board.Swap()
		g.strategy.Swap()
		g.state = stateSend

	case proto.KindEnd:
		logrus.WithField("winner", game.Player(msg.End.Winner)).Info("game over")
		g.state = stateEnd
	}

	return nil
}

func (g *Game) sendHandler() error {
	timeout := g.moveBudget()

	start := time.Now()
	mv, err := g.strategy.Next(timeout)
	if err != nil {
		return errors.Wrap(err, "generating move")
	}
	g.timer -= time.Since(start)

	logrus.WithFields(logrus.Fields{
		"x": mv.X, "y": mv.Y, "timer": g.timer,
	}).Info("generated move")

	if err := g.board.Play(g.player, int(mv.X), int(mv.Y)); err != nil {
		return errors.Wrap(err, "applying own move")
	}
	g.strategy.Play(g.player, mv.X, mv.Y)

	msg := proto.Msg{Kind: proto.KindMove}
	msg.Move.X = uint32(mv.X)
	msg.Move.Y = uint32(mv.Y)
	if err := g.send(&msg); err != nil {
		return err
	}

	g.state = stateRecv
	return nil
}

func (g *Game) endHandler() {
	logrus.Info("game over, shutting down")
	g.over = true
}

// moveBudget splits the remaining game clock evenly across the moves this
// agent can still expect to make.
func (g *Game) moveBudget() time.Duration {
	totalRounds := g.board.Size() * g.board.Size() / 2
	remaining := totalRounds - g.round
	if remaining < 1 {
		remaining = 1
	}

	budget := g.timer / time.Duration(remaining)
	if budget < 0 {
		budget = 0
	}
	return budget
}

// shouldSwap steals a strong opening: as White on our first decision, a
// black stone near the centre is worth taking over.
func (g *Game) shouldSwap(x, y int) bool {
	size := g.board.Size()
	centre := (size - 1) / 2

	dx, dy := x-centre, y-centre
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}

	dist := dx
	if dy > dist {
		dist = dy
	}
	return dist <= size/4
}

// sendSwap claims the opponent's opening and leaves the machine in Recv:
// after a swap it is the opponent's turn again.
func (g *Game) sendSwap() error {
	logrus.Info("swapping to steal the opening")

	if err := g.send(&proto.Msg{Kind: proto.KindSwap}); err != nil {
		return err
	}

	g.board.Swap()
	g.strategy.Swap()

	g.state = stateRecv
	return nil
}

// send writes one frame. The referee enforces all deadlines; the agent
// blocks as long as it must.
func (g *Game) send(msg *proto.Msg) error {
	buf, err := msg.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := g.conn.Write(buf); err != nil {
		return errors.Wrap(err, "writing frame")
	}
	return nil
}

// recv reads one frame and checks its kind against the expected set.
func (g *Game) recv(expected ...proto.Kind) (proto.Msg, error) {
	buf := make([]byte, proto.Size)
	if _, err := io.ReadFull(g.conn, buf); err != nil {
		return proto.Msg{}, errors.Wrap(err, "reading frame")
	}

	var msg proto.Msg
	if err := msg.UnmarshalBinary(buf); err != nil {
		return proto.Msg{}, err
	}

	for _, kind := range expected {
		if msg.Kind == kind {
			return msg, nil
		}
	}
	return proto.Msg{}, errors.Errorf("unexpected %v message", msg.Kind)
}
