package fleet

import (
	"github.com/cenkalti/backoff/v4"
	"github.com/drockwell/flotilla/pkg/sshutil"
)

// The engine's Transport contract is a subset of sshutil's.
var _ Transport = (sshutil.Transport)(nil)

// SSHDialer opens real SSH transports via pkg/sshutil, retrying the dial
// with exponential backoff when the config asks for more than one attempt.
type SSHDialer struct{}

// Dial implements Dialer.
func (SSHDialer) Dial(cfg *ConnectionConfig) (Transport, error) {
	params := toParams(cfg)

	var client *sshutil.Client
	operation := func() error {
		var err error
		client, err = sshutil.Dial(params)
		return err
	}

	if cfg.ConnectAttempts <= 1 {
		if err := operation(); err != nil {
			return nil, err
		}
		return client, nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(cfg.ConnectAttempts-1))
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return client, nil
}

func toParams(cfg *ConnectionConfig) *sshutil.Params {
	if cfg == nil {
		return nil
	}
	return &sshutil.Params{
		Host:           cfg.Host,
		Port:           cfg.Port,
		User:           cfg.User,
		IdentityFiles:  cfg.IdentityFiles,
		Password:       cfg.Password,
		UseAgent:       cfg.UseAgent,
		StrictHostKey:  cfg.StrictHostKey,
		KnownHostsFile: cfg.KnownHostsFile,
		Timeout:        cfg.ConnectTimeout,
		Gateway:        toParams(cfg.Gateway),
	}
}
