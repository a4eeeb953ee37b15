package hexmatch

import (
	"fmt"
	"io"
	"time"
)

// AgentResult is one agent's row of the result record.
type AgentResult struct {
	Agent   string
	Won     bool
	Rounds  int
	Secs    float64
	Verdict Verdict
	Logfile string
}

// Statistics is the machine-readable outcome of a match.
type Statistics struct {
	Black AgentResult
	White AgentResult
}

const csvHeader = "agent_1,agent_1_won,agent_1_rounds,agent_1_secs,agent_1_err,agent_1_logfile," +
	"agent_2,agent_2_won,agent_2_rounds,agent_2_secs,agent_2_err,agent_2_logfile,\n"

// WriteCSV emits the two-line result record: a header row and one data
// row covering both agents.
func (s *Statistics) WriteCSV(w io.Writer) error {
	if _, err := io.WriteString(w, csvHeader); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "%s,%d,%d,%f,%s,%s,%s,%d,%d,%f,%s,%s,\n",
		s.Black.Agent, winFlag(s.Black.Won), s.Black.Rounds, s.Black.Secs, s.Black.Verdict, s.Black.Logfile,
		s.White.Agent, winFlag(s.White.Won), s.White.Rounds, s.White.Secs, s.White.Verdict, s.White.Logfile)
	return err
}

func winFlag(b bool) int {
	if b {
		return 1
	}
	return 0
}

func secsToDuration(secs uint32) time.Duration {
	return time.Duration(secs) * time.Second
}
