package provision

import (
	"context"
	"fmt"
	"io"
	"os/exec"

	"golang.org/x/crypto/ssh"
)

// Transport opens the standard-output stream of a provisioning command.
// Closing the returned stream releases the underlying process or session.
type Transport interface {
	Open(ctx context.Context, command string) (io.ReadCloser, error)
}

// ExecTransport runs the command as a local subprocess through the shell.
type ExecTransport struct{}

// Open starts the command and returns its stdout. Close waits for the
// process to exit.
func (ExecTransport) Open(ctx context.Context, command string) (io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("pipe provisioning command: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start provisioning command: %w", err)
	}
	return &processStream{ReadCloser: stdout, cmd: cmd}, nil
}

type processStream struct {
	io.ReadCloser
	cmd *exec.Cmd
}

func (p *processStream) Close() error {
	p.ReadCloser.Close()
	// The handshake often stops reading before the command exits; a
	// non-zero exit after a complete handshake is not an error.
	_ = p.cmd.Wait()
	return nil
}

// SSHTransport runs the command on a remote host over SSH. This replaces
// the original design's process-global socket-factory override with a
// capability scoped to the provisioning call.
type SSHTransport struct {
	// Addr is the SSH endpoint, host:port.
	Addr string

	// Config authenticates the session.
	Config *ssh.ClientConfig
}

// Open dials the host, starts the command in a session, and returns its
// stdout. Close tears down the session and connection.
func (t *SSHTransport) Open(ctx context.Context, command string) (io.ReadCloser, error) {
	client, err := ssh.Dial("tcp", t.Addr, t.Config)
	if err != nil {
		return nil, fmt.Errorf("dial provisioning host %s: %w", t.Addr, err)
	}
	session, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("open session on %s: %w", t.Addr, err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		client.Close()
		return nil, fmt.Errorf("pipe session on %s: %w", t.Addr, err)
	}
	if err := session.Start(command); err != nil {
		session.Close()
		client.Close()
		return nil, fmt.Errorf("start provisioning command on %s: %w", t.Addr, err)
	}
	return &sshStream{Reader: stdout, session: session, client: client}, nil
}

type sshStream struct {
	io.Reader
	session *ssh.Session
	client  *ssh.Client
}

func (s *sshStream) Close() error {
	s.session.Close()
	return s.client.Close()
}
