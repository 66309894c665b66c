package cli

import (
	"context"
	"encoding/json"
	"os/exec"
	stdruntime "runtime"
	"sync"
	"time"

	"github.com/noccbuild/walletlink/internal/config"
	"github.com/noccbuild/walletlink/internal/service/connector"
	"github.com/noccbuild/walletlink/internal/store"
	linkerr "github.com/noccbuild/walletlink/pkg/errors"
)

// browserPopup is a browser tab opened out of process. The CLI cannot
// observe the tab, so it never reads as closed; flows end through
// completion or timeout instead.
type browserPopup struct{}

func (browserPopup) Closed() bool { return false }
func (browserPopup) Close()       {}

// browserOpener launches auth URLs in the system browser.
type browserOpener struct{}

func (browserOpener) Open(url string) (connector.Popup, error) {
	var cmd *exec.Cmd
	switch stdruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return nil, linkerr.WithCause(linkerr.ErrPopupBlocked, err)
	}
	return browserPopup{}, nil
}

// storeMessagePollInterval is how often the store is checked for a
// completed grant.
const storeMessagePollInterval = 2 * time.Second

// storeMessages adapts the completion handshake to a terminal session:
// the OAuth callback service writes the grant to the profile store, and
// this source polls for the record and synthesizes the completion
// message the flow expects.
type storeMessages struct {
	gateway  store.Gateway
	userID   string
	provider connector.Provider
	origin   string
	logger   *config.Logger
	since    time.Time
}

func (s *storeMessages) Listen(fn func(connector.Message)) func() {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		ticker := time.NewTicker(storeMessagePollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			rec, err := s.gateway.ReadConnector(ctx, s.userID, s.provider.String())
			if err != nil {
				if !linkerr.Is(err, linkerr.ErrNotFound) && ctx.Err() == nil {
					s.logger.Debug("connector grant poll: %v", err)
				}
				continue
			}
			if !rec.Connected || !rec.UpdatedAt.After(s.since) {
				continue
			}

			data, err := json.Marshal(connector.Grant{Username: rec.AccountName})
			if err != nil {
				continue
			}
			fn(connector.Message{
				Origin: s.origin,
				Type:   s.provider.MessageType(),
				Data:   data,
			})
			return
		}
	}()

	var once sync.Once
	return func() {
		once.Do(cancel)
	}
}
