package deploy

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"sort"

	"golang.org/x/crypto/ssh"

	"github.com/compatpipe/compatpipe/history"
)

// SSHDeployer pushes the site bundle to a remote host over SSH. Each
// deploy opens a fresh connection; files are streamed through remote
// shell commands so the host needs nothing beyond a POSIX shell.
type SSHDeployer struct {
	host       string
	user       string
	privateKey string
	remoteRoot string
	logger     *slog.Logger
}

// NewSSHDeployer creates a deployer that writes bundles below
// remoteRoot on host, authenticating as user with the given private
// key (PEM format).
func NewSSHDeployer(host, user, privateKeyPEM, remoteRoot string, logger *slog.Logger) *SSHDeployer {
	return &SSHDeployer{
		host:       host,
		user:       user,
		privateKey: privateKeyPEM,
		remoteRoot: remoteRoot,
		logger:     logger.With("component", "ssh_deployer"),
	}
}

// Deploy writes the snapshot's site bundle to remoteRoot/target.
func (d *SSHDeployer) Deploy(ctx context.Context, target string, snap *history.Snapshot) error {
	signer, err := ssh.ParsePrivateKey([]byte(d.privateKey))
	if err != nil {
		return fmt.Errorf("failed to parse private key: %w", err)
	}

	config := &ssh.ClientConfig{
		User:            d.user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // NOTE: for production, use a proper callback
	}

	client, err := ssh.Dial("tcp", d.host, config)
	if err != nil {
		return fmt.Errorf("failed to dial SSH: %w", err)
	}
	defer client.Close()

	// Tear the connection down on cancellation so in-flight transfers
	// abort instead of draining.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			client.Close()
		case <-done:
		}
	}()

	files := BundleFiles(snap)
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	root := path.Join(d.remoteRoot, target)
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.writeFile(client, path.Join(root, name), files[name]); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to upload %s: %w", name, err)
		}
	}

	d.logger.Info("site deployed", "target", target, "host", d.host, "files", len(files))
	return nil
}

// writeFile streams one file to the remote host via a shell session.
func (d *SSHDeployer) writeFile(client *ssh.Client, remotePath string, data []byte) error {
	session, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("failed to create SSH session: %w", err)
	}
	defer session.Close()

	session.Stdin = bytes.NewReader(data)

	cmd := fmt.Sprintf("mkdir -p %q && cat > %q", path.Dir(remotePath), remotePath)
	if err := session.Run(cmd); err != nil {
		return fmt.Errorf("failed to run remote write: %w", err)
	}
	return nil
}
