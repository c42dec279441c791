package remote

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

type commandResult struct {
	stdout, stderr string
	status         uint32
}

// startRouter serves exec requests over SSH on a loopback port
func startRouter(t *testing.T, handle func(cmd string) commandResult) (string, ssh.PublicKey) {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	hostKey, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)

	config := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if c.User() == "admin" && string(pass) == "secret" {
				return nil, nil
			}
			return nil, errors.New("access denied")
		},
	}
	config.AddHostKey(hostKey)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveConn(conn, config, handle)
		}
	}()

	return ln.Addr().String(), hostKey.PublicKey()
}

func serveConn(conn net.Conn, config *ssh.ServerConfig, handle func(cmd string) commandResult) {
	_, chans, reqs, err := ssh.NewServerConn(conn, config)
	if err != nil {
		conn.Close()
		return
	}
	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			_ = newCh.Reject(ssh.UnknownChannelType, "unsupported")
			continue
		}
		ch, chReqs, err := newCh.Accept()
		if err != nil {
			continue
		}
		go func() {
			defer ch.Close()
			for req := range chReqs {
				if req.Type != "exec" {
					_ = req.Reply(false, nil)
					continue
				}
				var payload struct{ Command string }
				_ = ssh.Unmarshal(req.Payload, &payload)
				_ = req.Reply(true, nil)

				res := handle(payload.Command)
				_, _ = ch.Write([]byte(res.stdout))
				_, _ = ch.Stderr().Write([]byte(res.stderr))
				_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{res.status}))
				return
			}
		}()
	}
}

func TestTargetValidate(t *testing.T) {
	tests := []struct {
		name    string
		target  Target
		wantErr error
	}{
		{name: "password", target: Target{Host: "r1", Username: "admin", Password: "x"}},
		{name: "key file", target: Target{Host: "r1", Username: "admin", KeyFile: "/k"}},
		{name: "both", target: Target{Host: "r1", Username: "admin", Password: "x", KeyFile: "/k"}, wantErr: ErrCredentials},
		{name: "neither", target: Target{Host: "r1", Username: "admin"}, wantErr: ErrCredentials},
		{name: "no host", target: Target{Username: "admin", Password: "x"}, wantErr: ErrHost},
		{name: "no user", target: Target{Host: "r1", Password: "x"}, wantErr: ErrHost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.target.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestOpenRejectsBadCredentialsBeforeDialing(t *testing.T) {
	d := &SSHDialer{Logger: zerolog.Nop()}
	_, err := d.Open(context.Background(), Target{Host: "192.0.2.1", Username: "admin"})
	assert.ErrorIs(t, err, ErrCredentials)
}

func TestAuthMethodKeyFile(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := ssh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)

	dir := t.TempDir()
	keyPath := filepath.Join(dir, "id_ed25519")
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(block), 0o600))

	auth, err := authMethod(Target{KeyFile: keyPath})
	require.NoError(t, err)
	assert.NotNil(t, auth)

	_, err = authMethod(Target{KeyFile: filepath.Join(dir, "missing")})
	assert.Error(t, err)

	garbage := filepath.Join(dir, "garbage")
	require.NoError(t, os.WriteFile(garbage, []byte("not a key"), 0o600))
	_, err = authMethod(Target{KeyFile: garbage})
	assert.Error(t, err)
}

func TestSSHSessionExecute(t *testing.T) {
	addr, _ := startRouter(t, func(cmd string) commandResult {
		switch {
		case strings.HasPrefix(cmd, "/ip dhcp-server export"):
			return commandResult{stdout: "/ip dhcp-server add name=lan\n"}
		case strings.Contains(cmd, "bad"):
			return commandResult{stderr: "failure: already have such entry"}
		default:
			return commandResult{status: 1}
		}
	})

	d := &SSHDialer{Timeout: 5 * time.Second, Logger: zerolog.Nop()}
	session, err := d.Open(context.Background(), Target{Host: addr, Username: "admin", Password: "secret"})
	require.NoError(t, err)
	defer session.Close()

	ctx := context.Background()

	stdout, stderr, err := session.Execute(ctx, "/ip dhcp-server export terse")
	require.NoError(t, err)
	assert.Equal(t, "/ip dhcp-server add name=lan\n", stdout)
	assert.Empty(t, stderr)

	_, stderr, err = session.Execute(ctx, "/ip dhcp-server lease add bad")
	require.NoError(t, err)
	assert.Equal(t, "failure: already have such entry", stderr)

	_, stderr, err = session.Execute(ctx, "/system reboot")
	require.NoError(t, err, "a non-zero exit is a command failure, not a transport one")
	assert.NotEmpty(t, stderr)
}

func TestSSHDialerWrongPassword(t *testing.T) {
	addr, _ := startRouter(t, func(string) commandResult { return commandResult{} })

	d := &SSHDialer{Timeout: 5 * time.Second, Logger: zerolog.Nop()}
	_, err := d.Open(context.Background(), Target{Host: addr, Username: "admin", Password: "wrong"})
	assert.Error(t, err)
}

func TestSSHDialerKnownHosts(t *testing.T) {
	addr, hostKey := startRouter(t, func(string) commandResult { return commandResult{stdout: "ok"} })
	target := Target{Host: addr, Username: "admin", Password: "secret"}
	dir := t.TempDir()

	trusted := filepath.Join(dir, "known_hosts")
	line := knownhosts.Line([]string{knownhosts.Normalize(addr)}, hostKey)
	require.NoError(t, os.WriteFile(trusted, []byte(line+"\n"), 0o600))

	d := &SSHDialer{Timeout: 5 * time.Second, KnownHostsPath: trusted, Logger: zerolog.Nop()}
	session, err := d.Open(context.Background(), target)
	require.NoError(t, err)
	require.NoError(t, session.Close())

	_, otherPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	otherSigner, err := ssh.NewSignerFromKey(otherPriv)
	require.NoError(t, err)

	untrusted := filepath.Join(dir, "known_hosts_other")
	line = knownhosts.Line([]string{knownhosts.Normalize(addr)}, otherSigner.PublicKey())
	require.NoError(t, os.WriteFile(untrusted, []byte(line+"\n"), 0o600))

	d.KnownHostsPath = untrusted
	_, err = d.Open(context.Background(), target)
	assert.Error(t, err)

	d.KnownHostsPath = filepath.Join(dir, "absent")
	_, err = d.Open(context.Background(), target)
	assert.Error(t, err)
}
