package adapter

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// TunnelConfig describes an SSH bastion used to reach a store that only
// listens on a private address.
type TunnelConfig struct {
	// Host is "host" or "host:port"; port defaults to 22
	Host       string
	User       string
	KeyFile    string
	Passphrase string
	Password   string
	// KnownHosts enables host key checking when set
	KnownHosts string
	Timeout    time.Duration
}

// Tunnel is an SSH connection that forwards store traffic.
type Tunnel struct {
	client *ssh.Client
	once   sync.Once
}

// OpenTunnel connects to the bastion described by cfg.
func OpenTunnel(ctx context.Context, cfg TunnelConfig) (*Tunnel, error) {
	config, err := buildTunnelConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build SSH config: %w", err)
	}

	addr := cfg.Host
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "22")
	}

	dialer := &net.Dialer{Timeout: cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial: %w", err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to establish SSH connection: %w", err)
	}

	return &Tunnel{client: ssh.NewClient(sshConn, chans, reqs)}, nil
}

// DialContext opens a forwarded connection to addr from the bastion.
// It has the signature RemoteConfig.Dial expects.
func (t *Tunnel) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	return t.client.DialContext(ctx, network, addr)
}

// Close tears down the SSH connection.
func (t *Tunnel) Close() error {
	var err error
	t.once.Do(func() {
		err = t.client.Close()
	})
	return err
}

func buildTunnelConfig(cfg TunnelConfig) (*ssh.ClientConfig, error) {
	if cfg.User == "" {
		return nil, fmt.Errorf("ssh user is required")
	}

	var methods []ssh.AuthMethod
	if cfg.KeyFile != "" {
		signer, err := loadSigner(cfg.KeyFile, cfg.Passphrase)
		if err != nil {
			return nil, err
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		methods = append(methods, ssh.Password(cfg.Password))
	}
	if len(methods) == 0 {
		return nil, fmt.Errorf("ssh key_file or password is required")
	}

	hostKey := ssh.InsecureIgnoreHostKey()
	if cfg.KnownHosts != "" {
		cb, err := knownhosts.New(expandHome(cfg.KnownHosts))
		if err != nil {
			return nil, fmt.Errorf("failed to load known hosts: %w", err)
		}
		hostKey = cb
	}

	return &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            methods,
		HostKeyCallback: hostKey,
		Timeout:         cfg.Timeout,
	}, nil
}

func loadSigner(path, passphrase string) (ssh.Signer, error) {
	data, err := os.ReadFile(expandHome(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	var signer ssh.Signer
	if passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(data, []byte(passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return signer, nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return home + path[1:]
}
