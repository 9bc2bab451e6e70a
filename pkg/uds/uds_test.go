package uds

import (
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"marketgate/pkg/exception"
)

func TestNewClientEmptyPath(t *testing.T) {
	if _, err := NewClient(""); err != exception.ErrEmptyPathUDS {
		t.Fatalf("expected ErrEmptyPath, got %v", err)
	}
}

func TestNewServerEmptyPath(t *testing.T) {
	if _, err := NewServer(""); err != exception.ErrEmptyPathUDS {
		t.Fatalf("expected ErrEmptyPath, got %v", err)
	}
}

func TestRemoveIfExistsRejectsNonSocket(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "not-socket")
	if err := os.WriteFile(path, []byte("data"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := RemoveIfExists(path); err != ErrPathNotSocket {
		t.Fatalf("expected ErrPathNotSocket, got %v", err)
	}
}

func TestServerDialAccept(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "uds.sock")

	server, err := NewServer(path)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if err := server.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer server.Close()
	if err := server.Listen(); err != ErrAlreadyListening {
		t.Fatalf("expected ErrAlreadyListening, got %v", err)
	}

	acceptCh := make(chan *net.UnixConn, 1)
	errCh := make(chan error, 1)
	go func() {
		conn, err := server.Accept()
		if err != nil {
			errCh <- err
			return
		}
		acceptCh <- conn
	}()

	client, err := NewClient(path)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := client.DialContext(ctx)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	timer := time.NewTimer(2 * time.Second)
	defer timer.Stop()

	select {
	case err := <-errCh:
		t.Fatalf("Accept: %v", err)
	case serverConn := <-acceptCh:
		defer serverConn.Close()
		if err := WriteFrame(conn, []byte(`{"ping":1}`)); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
		got, err := ReadFrame(serverConn)
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		if string(got) != `{"ping":1}` {
			t.Fatalf("frame mismatch: got %s", got)
		}
	case <-timer.C:
		t.Fatal("timeout waiting for accept")
	}
}

func TestAcceptBeforeListen(t *testing.T) {
	server, err := NewServer(filepath.Join(t.TempDir(), "uds.sock"))
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if _, err := server.Accept(); err != ErrNotListening {
		t.Fatalf("expected ErrNotListening, got %v", err)
	}
}

func TestFrameLimits(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, make([]byte, MaxFrameSize+1)); err != exception.ErrFrameTooLarge {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}

	buf.Reset()
	buf.Write([]byte{0xff, 0xff, 0xff, 0xff})
	if _, err := ReadFrame(&buf); err != exception.ErrFrameTooLarge {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}

	buf.Reset()
	buf.Write([]byte{0, 0, 0, 5, 'a'})
	if _, err := ReadFrame(&buf); err != io.ErrUnexpectedEOF {
		t.Fatalf("expected ErrUnexpectedEOF, got %v", err)
	}

	buf.Reset()
	if err := WriteFrame(&buf, nil); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	got, err := ReadFrame(&buf)
	if err != nil || len(got) != 0 {
		t.Fatalf("empty frame: %v %v", got, err)
	}
}

func TestServerServeEchoesUntilCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serve.sock")
	server, err := NewServer(path)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if err := server.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx, func(_ context.Context, conn *net.UnixConn) {
			for {
				frame, err := ReadFrame(conn)
				if err != nil {
					return
				}
				if err := WriteFrame(conn, frame); err != nil {
					return
				}
			}
		})
	}()

	client, err := NewClient(path)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	conn, err := client.DialContext(ctx)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := WriteFrame(conn, []byte("ping")); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	got, err := ReadFrame(conn)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if !bytes.Equal(got, []byte("ping")) {
		t.Fatalf("unexpected echo: %q", got)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("serve did not return after cancel")
	}
	if _, err := ReadFrame(conn); err == nil {
		t.Fatalf("expected connection closed after cancel")
	}
}
