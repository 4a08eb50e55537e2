package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

func testSocketPath(t *testing.T) string {
	t.Helper()
	// Keep the path short; unix socket paths are length-limited.
	return filepath.Join(t.TempDir(), "j.sock")
}

// startTestServer serves a canned handler and returns the socket path.
func startTestServer(t *testing.T, handler Handler) string {
	t.Helper()
	path := testSocketPath(t)

	listener, err := net.Listen("unix", path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- Serve(ctx, listener, handler)
	}()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-serveDone)
	})
	return path
}

func echoHandler() Handler {
	return HandlerFunc(func(_ context.Context, req Request) Response {
		return Response{OK: true, State: "idle", Message: "got " + string(req.Command)}
	})
}

func TestClientSendRoundTrip(t *testing.T) {
	path := startTestServer(t, echoHandler())

	resp, err := NewClient(path).Send(context.Background(), CmdStatus)
	require.NoError(t, err)
	require.True(t, resp.OK)
	require.Equal(t, "idle", resp.State)
	require.Equal(t, "got status", resp.Message)
}

func TestServeHandlesMultipleRequestsPerConnection(t *testing.T) {
	path := startTestServer(t, echoHandler())

	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer conn.Close()

	encoder := json.NewEncoder(conn)
	reader := bufio.NewReader(conn)

	for _, cmd := range []Command{CmdToggle, CmdPause, CmdResume, CmdStop} {
		require.NoError(t, encoder.Encode(Request{Command: cmd}))

		line, err := reader.ReadBytes('\n')
		require.NoError(t, err)

		var resp Response
		require.NoError(t, json.Unmarshal(line, &resp))
		require.True(t, resp.OK)
		require.Equal(t, "got "+string(cmd), resp.Message)
	}
}

func TestServeRejectsUnknownCommand(t *testing.T) {
	path := startTestServer(t, echoHandler())

	resp, err := NewClient(path).Send(context.Background(), Command("transmogrify"))
	require.NoError(t, err)
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "unknown command")
}

func TestCommandValid(t *testing.T) {
	for _, cmd := range []Command{CmdStatus, CmdToggle, CmdStop, CmdCancel, CmdPause, CmdResume} {
		require.True(t, cmd.Valid(), string(cmd))
	}
	require.False(t, Command("").Valid())
	require.False(t, Command("reboot").Valid())
}

func TestProbeNoListener(t *testing.T) {
	alive, err := NewClient(testSocketPath(t)).Probe(context.Background())
	require.NoError(t, err)
	require.False(t, alive)
}

func TestAcquireThenConflict(t *testing.T) {
	path := testSocketPath(t)

	owner, err := Acquire(context.Background(), path, 1)
	require.NoError(t, err)
	defer owner.Close()
	require.Equal(t, path, owner.Path())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = Serve(ctx, owner.Listener(), echoHandler())
	}()

	_, err = Acquire(context.Background(), path, 1)
	require.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestAcquireClearsStaleSocket(t *testing.T) {
	path := testSocketPath(t)

	// Bind a socket file without ever listening, then abandon it: the file
	// stays behind and dials are refused, exactly like a crashed owner.
	fd, err := syscall.Socket(syscall.AF_UNIX, syscall.SOCK_STREAM, 0)
	require.NoError(t, err)
	require.NoError(t, syscall.Bind(fd, &syscall.SockaddrUnix{Name: path}))
	require.NoError(t, syscall.Close(fd))

	owner, err := Acquire(context.Background(), path, 2)
	require.NoError(t, err)
	require.NoError(t, owner.Close())
}

func TestOwnerSocketCloseRemovesFile(t *testing.T) {
	path := testSocketPath(t)

	owner, err := Acquire(context.Background(), path, 1)
	require.NoError(t, err)
	require.NoError(t, owner.Close())

	reacquired, err := Acquire(context.Background(), path, 1)
	require.NoError(t, err)
	require.NoError(t, reacquired.Close())
}
