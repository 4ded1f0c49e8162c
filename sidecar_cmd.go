package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/picdock/engine/internal/model"
	"github.com/picdock/engine/internal/sidecar"
)

func newSidecarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sidecar",
		Short: "Inspect the credential-acquisition sidecar (cmd/fetcher)",
	}

	cmd.AddCommand(newSidecarCheckChromeCmd(), newSidecarWatchCookieCmd())

	return cmd
}

func newSidecarWatchCookieCmd() *cobra.Command {
	var jarDir string

	cmd := &cobra.Command{
		Use:   "watch-cookie <backend-id>",
		Short: "Poll a browser's cookie jar until a cookie-only backend's login fields appear, then save it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSidecarWatchCookie(cmd, model.BackendID(args[0]), jarDir)
		},
	}
	cmd.Flags().StringVar(&jarDir, "jar-dir", "", "directory a browser-automation driver writes <domain>.cookies snapshots into")
	cmd.MarkFlagRequired("jar-dir")

	return cmd
}

func runSidecarWatchCookie(cmd *cobra.Command, id model.BackendID, jarDir string) error {
	cc := mustCLIContext(cmd.Context())

	rule, ok := sidecar.RuleFor(id)
	if !ok {
		return fmt.Errorf("sidecar watch-cookie: %s has no cookie-jar watch rule", id)
	}

	cc.Statusf("waiting for %s login cookies in %s ...", rule.LoginDomain, jarDir)

	cookie, err := sidecar.WatchCookieJar(cmd.Context(), sidecar.FileCookieJarReader{Dir: jarDir}, rule)
	if err != nil {
		return fmt.Errorf("sidecar watch-cookie: %w", err)
	}

	cfg := cc.Cfg
	if cfg.Backends == nil {
		cfg.Backends = map[model.BackendID]model.BackendConfig{}
	}
	existing := cfg.Backends[id]
	existing.Enabled = true
	existing.Cookie = &model.CookieCredential{Cookie: cookie}
	cfg.Backends[id] = existing

	if err := cc.Engine.Config.Save(cmd.Context(), cfg); err != nil {
		return fmt.Errorf("sidecar watch-cookie: saving config: %w", err)
	}

	if cc.JSON {
		return printJSON(map[string]any{"backend": id, "captured": true})
	}

	fmt.Printf("captured cookie for %s and saved to config\n", id)

	return nil
}

func newSidecarCheckChromeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-chrome",
		Short: "Probe well-known install paths for a controllable browser",
		Args:  cobra.NoArgs,
		RunE:  runSidecarCheckChrome,
	}
}

func runSidecarCheckChrome(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	info, err := cc.Engine.Sidecar.CheckBrowser(cmd.Context())
	if err != nil {
		return fmt.Errorf("sidecar check-chrome: %w", err)
	}

	if cc.JSON {
		return printJSON(info)
	}

	if info.Installed {
		fmt.Printf("installed: %s (%s)\n", info.Name, info.Path)
	} else {
		fmt.Println("installed: false")
	}

	return nil
}
