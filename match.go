package hexmatch

import (
	"net"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/hexmatch/game"
	"github.com/hexmatch/proto"
)

// Match owns one head-to-head game: the authoritative board, the two
// agent processes, and the listening socket they connect back to.
type Match struct {
	cfg   Config
	board *game.Board

	black *AgentProc
	white *AgentProc

	ln   *net.TCPListener
	host string
	port string
}

// NewMatch validates the configuration and binds the listening socket on
// an OS-assigned localhost port.
func NewMatch(cfg Config) (*Match, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	board, err := game.NewBoard(cfg.BoardSize)
	if err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		return nil, errors.Wrap(err, "binding referee socket")
	}

	host, port, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		_ = ln.Close()
		return nil, errors.Wrap(err, "resolving bound address")
	}

	logrus.WithFields(logrus.Fields{"host": host, "port": port}).Debug("referee socket listening")

	timer := secsToDuration(cfg.GameSecs)
	return &Match{
		cfg:   cfg,
		board: board,
		black: &AgentProc{Player: game.Black, Path: cfg.BlackAgent, UID: cfg.BlackUID, Timer: timer},
		white: &AgentProc{Player: game.White, Path: cfg.WhiteAgent, UID: cfg.WhiteUID, Timer: timer},
		ln:    ln.(*net.TCPListener),
		host:  host,
		port:  port,
	}, nil
}

// Run plays the match to completion and returns its statistics. An error
// means the referee itself failed to set the game up (and the caller
// should exit non-zero); a forfeit is a normal result, not an error.
func (m *Match) Run() (*Statistics, error) {
	if err := m.black.spawn(m.ln, m.host, m.port, m.cfg); err != nil {
		_ = m.ln.Close()
		return nil, errors.Wrap(err, "spawning black agent")
	}
	if err := m.white.spawn(m.ln, m.host, m.port, m.cfg); err != nil {
		m.black.killGroup()
		_ = m.black.reap()
		_ = m.ln.Close()
		return nil, errors.Wrap(err, "spawning white agent")
	}

	stats := m.play()

	var errs error
	if err := m.black.reap(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := m.white.reap(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := m.ln.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if errs != nil {
		logrus.WithError(errs).Warn("match cleanup reported errors")
	}

	m.logMoveLatencies()

	return stats, nil
}

// play sends START to both sides, alternates turns until a terminal
// verdict, and settles the result record.
func (m *Match) play() *Statistics {
	stats := &Statistics{
		Black: AgentResult{Agent: m.black.Path, Logfile: m.black.Logfile},
		White: AgentResult{Agent: m.white.Path, Logfile: m.white.Logfile},
	}

	start := proto.Msg{Kind: proto.KindStart}
	start.Start = proto.Start{
		BoardSize:   uint32(m.cfg.BoardSize),
		GameSecs:    m.cfg.GameSecs,
		ThreadLimit: m.cfg.ThreadLimit,
		MemLimitMiB: m.cfg.MemLimitMiB,
	}

	start.Start.Player = uint32(game.Black)
	if v := m.black.sendMsg(&start, true); v != Ok {
		return m.settleForfeit(stats, m.black, v)
	}
	start.Start.Player = uint32(game.White)
	if v := m.white.sendMsg(&start, true); v != Ok {
		return m.settleForfeit(stats, m.white, v)
	}

	var verdict Verdict
	var winner game.Player
	turns := 0
	for {
		verdict, winner = m.playTurn(turns)
		if verdict != Ok {
			break
		}
		turns++
	}

	end := proto.Msg{Kind: proto.KindEnd}
	end.End.Winner = uint32(winner)
	m.black.sendMsg(&end, true)
	m.white.sendMsg(&end, true)

	stats.Black.Won = winner == game.Black
	stats.White.Won = winner == game.White

	// the terminal turn still counts: Black played the even turns 0..turns
	// and White the odd ones
	stats.Black.Rounds = (turns + 2) / 2
	stats.White.Rounds = (turns + 1) / 2

	stats.Black.Secs = m.consumedSecs(m.black)
	stats.White.Secs = m.consumedSecs(m.white)

	if winner == game.Black {
		stats.Black.Verdict = Ok
		stats.White.Verdict = verdict
	} else {
		stats.Black.Verdict = verdict
		stats.White.Verdict = Ok
	}

	return stats
}

// playTurn mediates one turn: receive from the side to move, apply, and
// forward to the other side. The returned player is the game's winner
// whenever the verdict is terminal.
func (m *Match) playTurn(turn int) (Verdict, game.Player) {
	players := [2]*AgentProc{m.black, m.white}
	player := players[turn%2]
	opponent := players[(turn+1)%2]

	logrus.WithFields(logrus.Fields{
		"turn":     turn,
		"to_play":  player.Player,
		"opponent": opponent.Player,
	}).Debug("mediating turn")

	// the swap rule: only White's first response may be a SWAP
	expected := []proto.Kind{proto.KindMove}
	if turn == 1 {
		expected = append(expected, proto.KindSwap)
	}

	msg, v := player.recvMsg(expected...)
	if v != Ok {
		return v, opponent.Player
	}

	switch msg.Kind {
	case proto.KindMove:
		logrus.WithFields(logrus.Fields{
			"player": player.Player, "x": msg.Move.X, "y": msg.Move.Y,
		}).Debug("received move")

		if err := m.board.Play(player.Player, int(msg.Move.X), int(msg.Move.Y)); err != nil {
			logrus.WithFields(logrus.Fields{
				"player": player.Player, "x": msg.Move.X, "y": msg.Move.Y,
			}).WithError(err).Debug("illegal move")
			return BadMove, opponent.Player
		}

		if winner, won := m.board.Winner(); won {
			logrus.Debug("board:\n" + m.board.String())
			return GameOver, winner
		}

	case proto.KindSwap:
		logrus.WithField("player", player.Player).Debug("received swap")
		m.board.Swap()
	}

	if v := opponent.sendMsg(&msg, false); v != Ok {
		// the receiving side forfeited the forward
		return v, player.Player
	}

	logrus.Debug("board:\n" + m.board.String())
	return Ok, game.Black
}

// settleForfeit records a pre-game forfeit by the offender (a failed
// START delivery).
func (m *Match) settleForfeit(stats *Statistics, offender *AgentProc, v Verdict) *Statistics {
	stats.Black.Won = offender != m.black
	stats.White.Won = offender != m.white

	if offender == m.black {
		stats.Black.Verdict = v
	} else {
		stats.White.Verdict = v
	}

	stats.Black.Secs = m.consumedSecs(m.black)
	stats.White.Secs = m.consumedSecs(m.white)
	return stats
}

// consumedSecs converts an agent's remaining budget into seconds spent.
func (m *Match) consumedSecs(a *AgentProc) float64 {
	remaining := a.Timer.Seconds()
	if remaining < 0 {
		remaining = 0
	}
	return float64(m.cfg.GameSecs) - remaining
}

// logMoveLatencies summarises each agent's think times at debug level.
func (m *Match) logMoveLatencies() {
	for _, a := range [2]*AgentProc{m.black, m.white} {
		if len(a.moveSecs) < 2 {
			continue
		}
		logrus.WithFields(logrus.Fields{
			"player": a.Player,
			"moves":  len(a.moveSecs),
			"mean_s": stat.Mean(a.moveSecs, nil),
			"sd_s":   stat.StdDev(a.moveSecs, nil),
		}).Debug("move latency summary")
	}
}
