package daemon

import (
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ianremillard/botty/internal/config"
	"github.com/ianremillard/botty/internal/proto"
)

// newTestServer starts a Server listening on a temp-dir socket and
// returns a dialer plus a cleanup-triggering teardown via t.Cleanup.
func newTestServer(t *testing.T) (dial func() net.Conn, srv *Server) {
	t.Helper()
	cfg := config.Default()
	srv = New(cfg)

	sockPath := filepath.Join(t.TempDir(), "botty.sock")
	go srv.Run(sockPath)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(sockPath); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Cleanup(srv.Shutdown)

	return func() net.Conn {
		conn, err := net.Dial("unix", sockPath)
		require.NoError(t, err)
		return conn
	}, srv
}

func roundTrip(t *testing.T, conn net.Conn, req proto.Request) proto.Response {
	t.Helper()
	require.NoError(t, proto.WriteLine(conn, req))
	scanner := proto.NewScanner(conn)
	resp, err := proto.ReadResponse(scanner)
	require.NoError(t, err)
	return resp
}

func TestPing(t *testing.T) {
	dial, _ := newTestServer(t)
	conn := dial()
	defer conn.Close()

	resp := roundTrip(t, conn, proto.Request{Kind: proto.ReqPing})
	assert.Equal(t, proto.RespOK, resp.Kind)
}

func TestSpawnListSendWait(t *testing.T) {
	dial, _ := newTestServer(t)

	spawnConn := dial()
	spawnResp := roundTrip(t, spawnConn, proto.Request{
		Kind: proto.ReqSpawn,
		Name: "echoer",
		Argv: []string{"/bin/sh"},
	})
	spawnConn.Close()
	require.Equal(t, proto.RespOK, spawnResp.Kind)
	require.Equal(t, "echoer", spawnResp.ID)

	listConn := dial()
	listResp := roundTrip(t, listConn, proto.Request{Kind: proto.ReqList})
	listConn.Close()
	require.Len(t, listResp.Agents, 1)
	assert.Equal(t, "echoer", listResp.Agents[0].ID)

	sendConn := dial()
	sendResp := roundTrip(t, sendConn, proto.Request{
		Kind:          proto.ReqSend,
		ID:            "echoer",
		Text:          "echo MARKER-VALUE",
		AppendNewline: true,
	})
	sendConn.Close()
	require.Equal(t, proto.RespOK, sendResp.Kind)

	waitConn := dial()
	waitResp := roundTrip(t, waitConn, proto.Request{
		Kind:     proto.ReqWait,
		ID:       "echoer",
		TimeoutS: 5,
		Predicate: proto.Predicate{
			Contains: "MARKER-VALUE",
		},
	})
	waitConn.Close()
	require.Equal(t, proto.RespOK, waitResp.Kind)
	assert.Equal(t, "matched", waitResp.Outcome)
}

func TestSendToUnknownAgentReturnsAgentNotFound(t *testing.T) {
	dial, _ := newTestServer(t)
	conn := dial()
	defer conn.Close()

	resp := roundTrip(t, conn, proto.Request{Kind: proto.ReqSend, ID: "ghost", Text: "hi"})
	assert.Equal(t, proto.RespErr, resp.Kind)
	assert.Equal(t, proto.ErrAgentNotFound, resp.ErrKind)
}

func TestKillWithEmptySelectionIsIdempotent(t *testing.T) {
	dial, _ := newTestServer(t)
	conn := dial()
	defer conn.Close()

	resp := roundTrip(t, conn, proto.Request{
		Kind:     proto.ReqKill,
		Selector: &proto.Selector{Label: "no-such-label"},
	})
	assert.Equal(t, proto.RespOK, resp.Kind)
}

func TestWaitOnExitedProcessReportsExited(t *testing.T) {
	dial, _ := newTestServer(t)

	spawnConn := dial()
	spawnResp := roundTrip(t, spawnConn, proto.Request{
		Kind: proto.ReqSpawn,
		Name: "quick-exit",
		Argv: []string{"/bin/sh", "-c", "exit 0"},
	})
	spawnConn.Close()
	require.Equal(t, proto.RespOK, spawnResp.Kind)

	waitConn := dial()
	defer waitConn.Close()
	waitResp := roundTrip(t, waitConn, proto.Request{Kind: proto.ReqWait, ID: "quick-exit", TimeoutS: 5})
	assert.Equal(t, "exited", waitResp.Outcome)
}

func TestTailNonFollowReturnsBufferedOutputThenEnds(t *testing.T) {
	dial, _ := newTestServer(t)

	spawnConn := dial()
	spawnResp := roundTrip(t, spawnConn, proto.Request{Kind: proto.ReqSpawn, Name: "tailed", Argv: []string{"/bin/sh"}})
	spawnConn.Close()
	require.Equal(t, proto.RespOK, spawnResp.Kind)

	sendConn := dial()
	roundTrip(t, sendConn, proto.Request{Kind: proto.ReqSend, ID: "tailed", Text: "echo TAIL-OK", AppendNewline: true})
	sendConn.Close()

	waitConn := dial()
	roundTrip(t, waitConn, proto.Request{Kind: proto.ReqWait, ID: "tailed", TimeoutS: 5, Predicate: proto.Predicate{Contains: "TAIL-OK"}})
	waitConn.Close()

	tailConn := dial()
	defer tailConn.Close()
	require.NoError(t, proto.WriteLine(tailConn, proto.Request{Kind: proto.ReqTail, ID: "tailed"}))
	scanner := proto.NewScanner(tailConn)

	header, err := proto.ReadResponse(scanner)
	require.NoError(t, err)
	require.Equal(t, proto.RespStream, header.Kind)

	sawOutput, sawEnd := false, false
	for scanner.Scan() {
		var item proto.StreamItem
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &item))
		if item.Kind == "output" {
			sawOutput = true
			assert.Contains(t, string(item.Data), "TAIL-OK")
		}
		if item.Kind == "end" {
			sawEnd = true
			break
		}
	}
	assert.True(t, sawOutput)
	assert.True(t, sawEnd)
}

func TestGcReapsExitedAgents(t *testing.T) {
	dial, srv := newTestServer(t)

	spawnConn := dial()
	spawnResp := roundTrip(t, spawnConn, proto.Request{Kind: proto.ReqSpawn, Name: "to-reap", Argv: []string{"/bin/sh", "-c", "exit 0"}})
	spawnConn.Close()
	require.Equal(t, proto.RespOK, spawnResp.Kind)

	waitConn := dial()
	roundTrip(t, waitConn, proto.Request{Kind: proto.ReqWait, ID: "to-reap", TimeoutS: 5})
	waitConn.Close()

	gcConn := dial()
	defer gcConn.Close()
	resp := roundTrip(t, gcConn, proto.Request{Kind: proto.ReqGc})
	assert.Equal(t, proto.RespOK, resp.Kind)
	assert.Equal(t, uint64(1), resp.Version)
	assert.Equal(t, 0, srv.reg.LiveCount())
}
