package hexmatch

import (
	"io"
	"net"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/hexmatch/game"
	"github.com/hexmatch/proto"
)

const (
	// acceptTimeout bounds how long a freshly spawned agent has to
	// connect back before it forfeits.
	acceptTimeout = 1000 * time.Millisecond

	// reapGrace is how long finalisation waits for an agent to exit on
	// its own after END before killing its process group.
	reapGrace = 2 * time.Second

	logfilePattern = "hex-agent-*.log"
	logfileMode    = 0666
)

// AgentProc is the referee's view of one agent: its identity, its
// remaining wall-clock budget, and the process and socket behind it.
type AgentProc struct {
	Player  game.Player
	Path    string
	UID     uint32
	Logfile string

	// Timer is the agent's remaining budget; every mediated send and
	// receive debits it by the elapsed monotonic time.
	Timer time.Duration

	conn net.Conn
	cmd  *exec.Cmd
	logf *os.File

	// moveSecs collects per-move think times for the verbose summary.
	moveSecs []float64
}

// openLog creates the agent's logfile, falling back to /dev/null.
func (a *AgentProc) openLog() {
	f, err := os.CreateTemp("", logfilePattern)
	if err == nil {
		_ = f.Chmod(logfileMode)
		a.logf = f
		a.Logfile = f.Name()
		logrus.WithFields(logrus.Fields{"agent": a.Path, "logfile": a.Logfile}).Debug("created agent logfile")
		return
	}

	logrus.WithField("agent", a.Path).Debug("failed to create agent logfile, using /dev/null")
	a.Logfile = os.DevNull
	a.logf, _ = os.OpenFile(os.DevNull, os.O_WRONLY, 0)
}

// spawn launches the agent under its unprivileged uid with hard resource
// limits, pointing it back at host:port, and waits for it to connect.
func (a *AgentProc) spawn(ln *net.TCPListener, host, port string, cfg Config) error {
	a.openLog()

	devnull, err := os.Open(os.DevNull)
	if err != nil {
		return errors.Wrap(err, "opening /dev/null")
	}
	defer devnull.Close()

	cmd := exec.Command(a.Path, host, port)
	cmd.Env = []string{}
	cmd.Stdin = devnull
	cmd.Stdout = a.logf
	cmd.Stderr = a.logf
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Credential: &syscall.Credential{
			Uid:         a.UID,
			Gid:         a.UID,
			NoSetGroups: true,
		},
		Setpgid: true,
	}

	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "spawning agent %q", a.Path)
	}
	a.cmd = cmd

	logrus.WithFields(logrus.Fields{
		"agent": a.Path,
		"pid":   cmd.Process.Pid,
		"uid":   a.UID,
	}).Debug("spawned agent process")

	// hard caps; the agent cannot raise them again
	nproc := unix.Rlimit{Cur: uint64(cfg.ThreadLimit), Max: uint64(cfg.ThreadLimit)}
	if err := unix.Prlimit(cmd.Process.Pid, unix.RLIMIT_NPROC, &nproc, nil); err != nil {
		logrus.WithError(err).Warn("failed to cap agent process count")
	}
	data := unix.Rlimit{Cur: uint64(cfg.MemLimitMiB) << 20, Max: uint64(cfg.MemLimitMiB) << 20}
	if err := unix.Prlimit(cmd.Process.Pid, unix.RLIMIT_DATA, &data, nil); err != nil {
		logrus.WithError(err).Warn("failed to cap agent data segment")
	}

	if err := ln.SetDeadline(time.Now().Add(acceptTimeout)); err != nil {
		a.killGroup()
		return errors.Wrap(err, "arming accept deadline")
	}

	conn, err := ln.Accept()
	if err != nil {
		a.killGroup()
		if isTimeout(err) {
			return errors.Errorf("%v (%s) timed out during the accept window, assuming forfeit",
				a.Player, a.Path)
		}
		return errors.Wrapf(err, "accepting %v agent connection", a.Player)
	}

	a.conn = conn
	return nil
}

// killGroup force-kills the agent's whole process group.
func (a *AgentProc) killGroup() {
	if a.cmd == nil || a.cmd.Process == nil {
		return
	}
	_ = unix.Kill(-a.cmd.Process.Pid, unix.SIGKILL)
}

// reap closes the agent's socket and collects its exit status, killing
// the process group if it overstays the grace period.
func (a *AgentProc) reap() error {
	var errs error

	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	if a.cmd != nil && a.cmd.Process != nil {
		done := make(chan error, 1)
		go func() { done <- a.cmd.Wait() }()

		select {
		case err := <-done:
			logExit(a, err)
		case <-time.After(reapGrace):
			a.killGroup()
			logExit(a, <-done)
		}
	}

	if a.logf != nil {
		if err := a.logf.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	return errs
}

func logExit(a *AgentProc, err error) {
	code := 0
	if exit, ok := err.(*exec.ExitError); ok {
		code = exit.ExitCode()
	}
	logrus.WithFields(logrus.Fields{"agent": a.Path, "code": code}).Debug("agent process exited")
}

// sendMsg writes one frame to the agent. Unless force is set the write
// must complete within the agent's remaining budget; the elapsed time is
// debited either way. force is reserved for START and END, which must
// not themselves decide the game.
func (a *AgentProc) sendMsg(msg *proto.Msg, force bool) Verdict {
	buf, err := msg.MarshalBinary()
	if err != nil {
		return BadMsg
	}

	start := time.Now()
	if force {
		_ = a.conn.SetWriteDeadline(time.Time{})
	} else {
		if a.Timer <= 0 {
			return Timeout
		}
		_ = a.conn.SetWriteDeadline(start.Add(a.Timer))
	}

	_, werr := a.conn.Write(buf)
	a.Timer -= time.Since(start)

	if werr != nil {
		if isTimeout(werr) {
			logrus.WithField("player", a.Player).Debug("timeout sending message")
			return Timeout
		}
		return Disconnect
	}
	return Ok
}

// recvMsg reads one frame from the agent within its remaining budget and
// checks the kind against the turn's expected set.
func (a *AgentProc) recvMsg(expected ...proto.Kind) (proto.Msg, Verdict) {
	if a.Timer <= 0 {
		return proto.Msg{}, Timeout
	}

	start := time.Now()
	_ = a.conn.SetReadDeadline(start.Add(a.Timer))

	buf := make([]byte, proto.Size)
	_, err := io.ReadFull(a.conn, buf)
	elapsed := time.Since(start)
	a.Timer -= elapsed

	if err != nil {
		if isTimeout(err) {
			logrus.WithField("player", a.Player).Debug("timeout receiving message")
			return proto.Msg{}, Timeout
		}
		return proto.Msg{}, Disconnect
	}

	a.moveSecs = append(a.moveSecs, elapsed.Seconds())

	var msg proto.Msg
	if err := msg.UnmarshalBinary(buf); err != nil {
		return proto.Msg{}, BadMsg
	}

	for _, kind := range expected {
		if msg.Kind == kind {
			return msg, Ok
		}
	}
	return proto.Msg{}, BadMsg
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
