package agent

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexmatch/game"
	"github.com/hexmatch/proto"
)

// refereeEnd is a test double for the referee side of the socket.
type refereeEnd struct {
	t    *testing.T
	conn net.Conn
}

func (r *refereeEnd) send(msg proto.Msg) {
	buf, err := msg.MarshalBinary()
	require.NoError(r.t, err)
	_, err = r.conn.Write(buf)
	require.NoError(r.t, err)
}

func (r *refereeEnd) recv() proto.Msg {
	buf := make([]byte, proto.Size)
	_, err := io.ReadFull(r.conn, buf)
	require.NoError(r.t, err)

	var msg proto.Msg
	require.NoError(r.t, msg.UnmarshalBinary(buf))
	return msg
}

func pipe(t *testing.T) (*Game, *refereeEnd) {
	client, server := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return New(client, StrategyRandom), &refereeEnd{t: t, conn: server}
}

func startMsg(player game.Player, size uint32) proto.Msg {
	msg := proto.Msg{Kind: proto.KindStart}
	msg.Start = proto.Start{
		Player:      uint32(player),
		BoardSize:   size,
		GameSecs:    60,
		ThreadLimit: 4,
		MemLimitMiB: 64,
	}
	return msg
}

func TestStartHandlerBlackSends(t *testing.T) {
	g, ref := pipe(t)

	go ref.send(startMsg(game.Black, 5))

	require.NoError(t, g.startHandler())

	assert.Equal(t, game.Black, g.player)
	assert.Equal(t, game.White, g.opponent)
	assert.Equal(t, 60*time.Second, g.timer)
	assert.Equal(t, 5, g.board.Size())
	assert.NotNil(t, g.strategy)
	assert.Equal(t, stateSend, g.state)
}

func TestStartHandlerWhiteReceives(t *testing.T) {
	g, ref := pipe(t)

	go ref.send(startMsg(game.White, 5))

	require.NoError(t, g.startHandler())
	assert.Equal(t, stateRecv, g.state)
}

func TestStartHandlerRejectsWrongKind(t *testing.T) {
	g, ref := pipe(t)

	go ref.send(proto.Msg{Kind: proto.KindSwap})

	assert.Error(t, g.startHandler())
}

func TestRecvHandlerAppliesOpponentMove(t *testing.T) {
	g, ref := pipe(t)

	go ref.send(startMsg(game.White, 5))
	require.NoError(t, g.startHandler())
	g.round = 3 // outside the swap window

	mv := proto.Msg{Kind: proto.KindMove}
	mv.Move.X, mv.Move.Y = 4, 0
	go ref.send(mv)

	require.NoError(t, g.recvHandler())

	assert.Equal(t, game.CellBlack, g.board.Cell(4, 0))
	assert.Equal(t, stateSend, g.state)
}

func TestRecvHandlerSwapsCentralOpening(t *testing.T) {
	g, ref := pipe(t)

	go ref.send(startMsg(game.White, 11))
	require.NoError(t, g.startHandler())
	g.round = 1

	mv := proto.Msg{Kind: proto.KindMove}
	mv.Move.X, mv.Move.Y = 5, 5

	frames := make(chan proto.Msg, 1)
	go func() {
		ref.send(mv)
		frames <- ref.recv()
	}()

	require.NoError(t, g.recvHandler())

	swap := <-frames
	assert.Equal(t, proto.KindSwap, swap.Kind)
	assert.Equal(t, stateRecv, g.state, "after our swap the opponent moves again")
	assert.Equal(t, game.CellWhite, g.board.Cell(5, 5), "the stolen stone is ours now")
}

func TestRecvHandlerLeavesCornerOpening(t *testing.T) {
	g, ref := pipe(t)

	go ref.send(startMsg(game.White, 11))
	require.NoError(t, g.startHandler())
	g.round = 1

	mv := proto.Msg{Kind: proto.KindMove}
	mv.Move.X, mv.Move.Y = 0, 0
	go ref.send(mv)

	require.NoError(t, g.recvHandler())
	assert.Equal(t, stateSend, g.state)
	assert.Equal(t, game.CellBlack, g.board.Cell(0, 0))
}

func TestRecvHandlerAppliesSwap(t *testing.T) {
	g, ref := pipe(t)

	go ref.send(startMsg(game.Black, 5))
	require.NoError(t, g.startHandler())

	// we opened, opponent steals it
	require.NoError(t, g.board.Play(game.Black, 2, 2))
	g.strategy.Play(game.Black, 2, 2)

	go ref.send(proto.Msg{Kind: proto.KindSwap})

	require.NoError(t, g.recvHandler())
	assert.Equal(t, game.CellWhite, g.board.Cell(2, 2))
	assert.Equal(t, stateSend, g.state)
}

func TestRecvHandlerEndsGame(t *testing.T) {
	g, ref := pipe(t)

	go ref.send(startMsg(game.White, 5))
	require.NoError(t, g.startHandler())

	end := proto.Msg{Kind: proto.KindEnd}
	end.End.Winner = uint32(game.Black)
	go ref.send(end)

	require.NoError(t, g.recvHandler())
	assert.Equal(t, stateEnd, g.state)

	g.endHandler()
	assert.True(t, g.over)
}

func TestRecvHandlerRejectsIllegalMove(t *testing.T) {
	g, ref := pipe(t)

	go ref.send(startMsg(game.White, 5))
	require.NoError(t, g.startHandler())
	g.round = 3

	mv := proto.Msg{Kind: proto.KindMove}
	mv.Move.X, mv.Move.Y = 9, 9
	go ref.send(mv)

	assert.Error(t, g.recvHandler())
}

func TestSendHandlerPlaysAndReports(t *testing.T) {
	g, ref := pipe(t)

	go ref.send(startMsg(game.Black, 5))
	require.NoError(t, g.startHandler())
	g.round = 1

	frames := make(chan proto.Msg, 1)
	go func() { frames <- ref.recv() }()

	require.NoError(t, g.sendHandler())

	msg := <-frames
	require.Equal(t, proto.KindMove, msg.Kind)
	assert.Equal(t, game.CellBlack, g.board.Cell(int(msg.Move.X), int(msg.Move.Y)))
	assert.Equal(t, stateRecv, g.state)
	assert.Less(t, g.timer, 60*time.Second, "think time is debited")
}

func TestMoveBudgetNeverDividesByZero(t *testing.T) {
	board, err := game.NewBoard(3)
	require.NoError(t, err)

	g := &Game{board: board, timer: 10 * time.Second, round: 100}
	assert.Equal(t, 10*time.Second, g.moveBudget())

	g.timer = -time.Second
	assert.Equal(t, time.Duration(0), g.moveBudget())
}

func TestShouldSwap(t *testing.T) {
	board, err := game.NewBoard(11)
	require.NoError(t, err)
	g := &Game{board: board}

	assert.True(t, g.shouldSwap(5, 5))
	assert.True(t, g.shouldSwap(4, 7))
	assert.False(t, g.shouldSwap(0, 0))
	assert.False(t, g.shouldSwap(10, 5))
}
