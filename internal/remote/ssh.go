package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"leasesync/pkg/utils"
)

// DefaultPort is the RouterOS SSH service port
const DefaultPort = 22

var (
	// ErrCredentials is returned when a target sets both or neither of password and key file
	ErrCredentials = errors.New("remote: exactly one of password or key_file is required")
	// ErrHost is returned for a target without host or username
	ErrHost = errors.New("remote: host and username are required")
)

// Target identifies a router and how to log in to it
type Target struct {
	Host     string `yaml:"host" json:"host"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password,omitempty" json:"-"`
	KeyFile  string `yaml:"key_file,omitempty" json:"key_file,omitempty"`
}

// Validate checks that the target is complete
func (t Target) Validate() error {
	if strings.TrimSpace(t.Host) == "" || strings.TrimSpace(t.Username) == "" {
		return ErrHost
	}
	if (t.Password == "") == (t.KeyFile == "") {
		return fmt.Errorf("%s: %w", t.Host, ErrCredentials)
	}
	return nil
}

// Session runs commands on one router
type Session interface {
	// Execute runs cmd and returns its output. err is set only when the
	// command could not be run; a command the router rejected reports
	// through stderr.
	Execute(ctx context.Context, cmd string) (stdout, stderr string, err error)
	Close() error
}

// Dialer opens sessions to routers
type Dialer interface {
	Open(ctx context.Context, target Target) (Session, error)
}

// SSHDialer opens sessions over SSH
type SSHDialer struct {
	Port           int
	Timeout        time.Duration
	KnownHostsPath string
	Logger         zerolog.Logger
}

// Open connects and authenticates to target
func (d *SSHDialer) Open(ctx context.Context, target Target) (Session, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}

	config, err := d.clientConfig(target)
	if err != nil {
		return nil, err
	}

	port := d.Port
	if port <= 0 {
		port = DefaultPort
	}
	address := utils.HostPort(target.Host, port)

	dialer := net.Dialer{Timeout: d.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}

	clientConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	if err != nil {
		conn.Close()
		return nil, err
	}

	d.Logger.Debug().Str("host", address).Str("user", target.Username).Msg("SSH session established")
	return &sshSession{client: ssh.NewClient(clientConn, chans, reqs), host: address}, nil
}

func (d *SSHDialer) clientConfig(target Target) (*ssh.ClientConfig, error) {
	auth, err := authMethod(target)
	if err != nil {
		return nil, err
	}

	hostKeyCallback, err := d.hostKeyCallback(target.Host)
	if err != nil {
		return nil, err
	}

	return &ssh.ClientConfig{
		User:            target.Username,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: hostKeyCallback,
		Timeout:         d.Timeout,
	}, nil
}

func (d *SSHDialer) hostKeyCallback(host string) (ssh.HostKeyCallback, error) {
	path := strings.TrimSpace(d.KnownHostsPath)
	if path == "" {
		d.Logger.Warn().Str("host", host).Msg("Host key verification disabled, set known_hosts to enable it")
		return ssh.InsecureIgnoreHostKey(), nil
	}
	callback, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("load known hosts %s: %w", path, err)
	}
	return callback, nil
}

func authMethod(target Target) (ssh.AuthMethod, error) {
	if target.Password != "" {
		return ssh.Password(target.Password), nil
	}

	privateKey, err := os.ReadFile(target.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("parse key file %s: %w", target.KeyFile, err)
	}
	return ssh.PublicKeys(signer), nil
}

type sshSession struct {
	client *ssh.Client
	host   string
}

func (s *sshSession) Execute(ctx context.Context, cmd string) (string, string, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return "", "", fmt.Errorf("open channel to %s: %w", s.host, err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- session.Run(cmd) }()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return "", "", ctx.Err()
	case err = <-done:
	}

	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		msg := stderr.String()
		if strings.TrimSpace(msg) == "" {
			msg = exitErr.Error()
		}
		return stdout.String(), msg, nil
	}
	return stdout.String(), stderr.String(), err
}

func (s *sshSession) Close() error {
	return s.client.Close()
}
