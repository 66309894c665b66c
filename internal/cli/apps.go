package cli

import (
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/noccbuild/walletlink/internal/output"
	"github.com/noccbuild/walletlink/internal/service/connector"
	linkerr "github.com/noccbuild/walletlink/pkg/errors"
)

// appView is the JSON shape of a connector status.
type appView struct {
	Provider  string `json:"provider"`
	Connected bool   `json:"connected"`
	Account   string `json:"account,omitempty"`
	CheckedAt string `json:"checked_at,omitempty"`
}

func appViewOf(s connector.Status) appView {
	v := appView{
		Provider:  s.Provider.String(),
		Connected: s.Connected,
		Account:   s.AccountName,
	}
	if !s.CheckedAt.IsZero() {
		v.CheckedAt = s.CheckedAt.Format(time.RFC3339)
	}
	return v
}

// appsCmd groups the third-party application connector commands.
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "Manage third-party application connections",
	Long:  "List, connect, and disconnect third-party application integrations such as GitHub, Vercel, and Supabase.",
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var appsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the connection status of every enabled application",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := newRuntime(cfg, logger)
		if err != nil {
			return err
		}
		defer rt.close()

		svc, err := rt.connectorService(nil)
		if err != nil {
			return err
		}

		statuses, err := svc.Statuses(cmd.Context())
		if err != nil {
			return err
		}
		sort.Slice(statuses, func(i, j int) bool {
			return statuses[i].Provider < statuses[j].Provider
		})

		if formatter.IsJSON() {
			views := make([]appView, 0, len(statuses))
			for _, s := range statuses {
				views = append(views, appViewOf(s))
			}
			return formatter.Print(views)
		}

		table := output.NewTable("PROVIDER", "STATUS", "ACCOUNT")
		for _, s := range statuses {
			state := "disconnected"
			account := "-"
			if s.Connected {
				state = "connected"
				if s.AccountName != "" {
					account = s.AccountName
				}
			}
			table.AddRow(s.Provider.DisplayName(), state, account)
		}
		return table.Render(formatter.Writer())
	},
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var appsConnectCmd = &cobra.Command{
	Use:   "connect <provider>",
	Short: "Authorize an application through its OAuth flow",
	Long:  "Opens the provider's authorization page in the system browser and waits for the grant to land in the profile store.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		provider, err := parseConnector(args[0])
		if err != nil {
			return err
		}

		rt, err := newRuntime(cfg, logger)
		if err != nil {
			return err
		}
		defer rt.close()

		userID, err := rt.auth.CurrentUser(cmd.Context())
		if err != nil {
			return err
		}

		messages := &storeMessages{
			gateway:  rt.gateway,
			userID:   userID,
			provider: provider,
			origin:   cfg.Connectors.Origin,
			logger:   logger,
			since:    time.Now(),
		}
		svc, err := rt.connectorService(messages)
		if err != nil {
			return err
		}

		output.Infof("Opening %s authorization in your browser...", provider.DisplayName())
		status, err := svc.Connect(cmd.Context(), provider)
		if err != nil {
			return err
		}

		if formatter.IsJSON() {
			return formatter.Print(appViewOf(status))
		}
		output.Successf("Connected %s as %s", provider.DisplayName(), status.AccountName)
		return nil
	},
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var appsDisconnectCmd = &cobra.Command{
	Use:   "disconnect <provider>",
	Short: "Revoke an application connection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		provider, err := parseConnector(args[0])
		if err != nil {
			return err
		}

		rt, err := newRuntime(cfg, logger)
		if err != nil {
			return err
		}
		defer rt.close()

		svc, err := rt.connectorService(nil)
		if err != nil {
			return err
		}
		if err := svc.Disconnect(cmd.Context(), provider); err != nil {
			return err
		}

		if formatter.IsJSON() {
			return formatter.Print(appView{Provider: provider.String(), Connected: false})
		}
		return formatter.Printf("Disconnected %s\n", provider.DisplayName())
	},
}

// connectorService builds the connector service on top of the runtime.
// It requires a configured profile store because connector grants live
// there.
func (rt *runtime) connectorService(messages connector.MessageSource) (*connector.Service, error) {
	if rt.gateway == nil {
		return nil, linkerr.WithSuggestion(
			linkerr.New(linkerr.KindInput, "STORE_UNCONFIGURED", "application connectors require a profile store"),
			"set store.url and store.api_key in the configuration file",
		)
	}
	return connector.NewService(
		rt.cfg.Connectors,
		rt.gateway,
		rt.bus,
		rt.auth,
		browserOpener{},
		messages,
		rt.logger,
	), nil
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	appsCmd.AddCommand(appsListCmd)
	appsCmd.AddCommand(appsConnectCmd)
	appsCmd.AddCommand(appsDisconnectCmd)
	rootCmd.AddCommand(appsCmd)
}
