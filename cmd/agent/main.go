// The agent connects back to the referee at the host and port given on
// the command line and plays one game with the selected search strategy.
package main

import (
	"flag"
	"net"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/hexmatch/agent"
)

func main() {
	strategy := flag.String("strategy", "mcts", "search strategy (mcts | random)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	logrus.SetOutput(os.Stdout)
	if *debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if flag.NArg() < 2 {
		logrus.Errorf("usage: %s [-strategy mcts|random] <host> <port>", os.Args[0])
		os.Exit(1)
	}
	host, port := flag.Arg(0), flag.Arg(1)

	kind, err := agent.ParseStrategyKind(*strategy)
	if err != nil {
		logrus.WithError(err).Error("bad strategy")
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", net.JoinHostPort(host, port))
	if err != nil {
		logrus.WithError(err).Errorf("failed to connect to %s:%s", host, port)
		os.Exit(1)
	}
	defer conn.Close()

	if err := agent.New(conn, kind).Run(); err != nil {
		logrus.WithError(err).Error("game abandoned")
		os.Exit(1)
	}
}
