package publish

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"stemforge/internal/config"
	"stemforge/internal/logging"
	"stemforge/internal/stage"
)

// SCPPublisher copies archives to a remote host with the scp sink protocol.
type SCPPublisher struct {
	addr       string
	remotePath string
	timeout    time.Duration
	sshConfig  *ssh.ClientConfig
	logger     *slog.Logger
}

// NewSCP builds an SCP publisher. Host keys are verified against the
// configured known_hosts file; without one any host key is accepted.
func NewSCP(cfg config.SCP, logger *slog.Logger) (*SCPPublisher, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if strings.TrimSpace(cfg.Host) == "" || strings.TrimSpace(cfg.Username) == "" {
		return nil, errors.New("scp host and username required")
	}
	auth, err := authMethods(cfg)
	if err != nil {
		return nil, err
	}
	hostKey, err := hostKeyCallback(cfg.KnownHosts, logger)
	if err != nil {
		return nil, err
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	port := cfg.Port
	if port <= 0 {
		port = 22
	}
	return &SCPPublisher{
		addr:       net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		remotePath: cfg.RemotePath,
		timeout:    timeout,
		sshConfig: &ssh.ClientConfig{
			User:            cfg.Username,
			Auth:            auth,
			HostKeyCallback: hostKey,
			Timeout:         timeout,
		},
		logger: logger,
	}, nil
}

func authMethods(cfg config.SCP) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod
	if keyFile := strings.TrimSpace(cfg.KeyFile); keyFile != "" {
		pem, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("read ssh key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, fmt.Errorf("parse ssh key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		methods = append(methods, ssh.Password(cfg.Password))
	}
	if len(methods) == 0 {
		return nil, errors.New("scp requires a password or key file")
	}
	return methods, nil
}

func hostKeyCallback(knownHostsFile string, logger *slog.Logger) (ssh.HostKeyCallback, error) {
	if strings.TrimSpace(knownHostsFile) == "" {
		logging.WarnWithContext(logger, "scp host key verification disabled", "scp_insecure_host_key",
			logging.String(logging.FieldImpact, "uploads accept any server host key"),
			logging.String(logging.FieldErrorHint, "set publish.scp.known_hosts"),
		)
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec
	}
	callback, err := knownhosts.New(knownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("load known_hosts: %w", err)
	}
	return callback, nil
}

// remoteTarget returns the remote directory and file name for an archive.
// The remote path is always a directory; the archive keeps its own name.
func (p *SCPPublisher) remoteTarget(archivePath string) (string, string) {
	name := filepath.Base(archivePath)
	remote := strings.TrimSpace(p.remotePath)
	if remote == "" {
		return ".", name
	}
	if dir := strings.TrimRight(remote, "/"); dir != "" {
		return dir, name
	}
	return "/", name
}

// Publish uploads archivePath and returns user@host:path.
func (p *SCPPublisher) Publish(ctx context.Context, archivePath string) (string, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("stat archive: %w", err)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout+time.Duration(info.Size()/(256*1024))*time.Second)
		defer cancel()
	}

	dialer := net.Dialer{Timeout: p.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		return "", fmt.Errorf("dial %s: %w", p.addr, err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, p.addr, p.sshConfig)
	if err != nil {
		_ = conn.Close()
		return "", fmt.Errorf("ssh handshake: %w", err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)
	defer client.Close()

	stop := context.AfterFunc(ctx, func() { _ = client.Close() })
	defer stop()

	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("open ssh session: %w", err)
	}
	defer session.Close()

	dir, name := p.remoteTarget(archivePath)
	stdin, err := session.StdinPipe()
	if err != nil {
		return "", fmt.Errorf("scp stdin: %w", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("scp stdout: %w", err)
	}
	if err := session.Start("scp -t " + shellQuote(dir)); err != nil {
		return "", fmt.Errorf("start remote scp: %w", err)
	}
	if err := sendFile(stdin, stdout, name, info.Size(), file); err != nil {
		return "", err
	}
	_ = stdin.Close()
	if err := session.Wait(); err != nil {
		var exitMissing *ssh.ExitMissingError
		if !errors.As(err, &exitMissing) {
			return "", fmt.Errorf("remote scp: %w", err)
		}
	}

	dest := fmt.Sprintf("%s@%s:%s", p.sshConfig.User, p.addr, path.Join(dir, name))
	logging.WithContext(ctx, p.logger).Info("archive uploaded",
		logging.String("destination", dest),
		logging.Int64("bytes", info.Size()),
		logging.String(logging.FieldEventType, "scp_upload_complete"),
	)
	return dest, nil
}

// HealthCheck reports the configured destination.
func (p *SCPPublisher) HealthCheck(context.Context) stage.Health {
	return stage.Health{Name: stage.Publish, Ready: true, Detail: p.sshConfig.User + "@" + p.addr}
}

// sendFile speaks the sink side of the scp protocol: wait for the remote
// ack, send the C record, the contents and a trailing zero byte, with an ack
// after each step.
func sendFile(w io.Writer, r io.Reader, name string, size int64, body io.Reader) error {
	acks := bufio.NewReader(r)
	if err := readAck(acks); err != nil {
		return fmt.Errorf("scp handshake: %w", err)
	}
	if _, err := fmt.Fprintf(w, "C0644 %d %s\n", size, name); err != nil {
		return fmt.Errorf("scp header: %w", err)
	}
	if err := readAck(acks); err != nil {
		return fmt.Errorf("scp header: %w", err)
	}
	written, err := io.Copy(w, body)
	if err != nil {
		return fmt.Errorf("scp transfer: %w", err)
	}
	if written != size {
		return fmt.Errorf("scp transfer: wrote %d of %d bytes", written, size)
	}
	if _, err := w.Write([]byte{0}); err != nil {
		return fmt.Errorf("scp transfer: %w", err)
	}
	if err := readAck(acks); err != nil {
		return fmt.Errorf("scp transfer: %w", err)
	}
	return nil
}

func readAck(r *bufio.Reader) error {
	code, err := r.ReadByte()
	if err != nil {
		return fmt.Errorf("read ack: %w", err)
	}
	if code == 0 {
		return nil
	}
	msg, _ := r.ReadString('\n')
	msg = strings.TrimSpace(msg)
	if msg == "" {
		msg = fmt.Sprintf("status %d", code)
	}
	return errors.New("remote: " + msg)
}

func shellQuote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}
