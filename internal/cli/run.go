package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"coworkshell/internal/tracking"
	"coworkshell/pkg/api"
	"coworkshell/pkg/domain"
)

var (
	runOpenURL   string
	runAuthorize string
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runOpenURL, "open-url", "", "Deep link the app was opened with")
	runCmd.Flags().StringVar(&runAuthorize, "tracking", "", "Record tracking authorization before launch: authorized or denied")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the launch gate and open the browser session on redirect",
	Long:  "Runs the launch gate. A native outcome prints one line and exits. A redirect outcome opens a browser session on the configured DevTools endpoint and blocks until interrupted.",
	RunE:  runRun,
}

// osLauncher 把 tel/mailto/sms 链接交给系统默认程序
type osLauncher struct{}

func (osLauncher) Launch(_ context.Context, url string) error {
	return browser.OpenURL(url)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := api.NewService(cfg, api.Options{
		Launcher:  osLauncher{},
		Presenter: newConsolePresenter(os.Stdin, cmd.ErrOrStderr()),
	}, log)
	if err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer svc.Close(context.Background())

	switch runAuthorize {
	case "":
	case "authorized":
		err = svc.SetTrackingAuthorization(ctx, tracking.Authorized)
	case "denied":
		err = svc.SetTrackingAuthorization(ctx, tracking.Denied)
	default:
		return fmt.Errorf("unknown tracking authorization %q", runAuthorize)
	}
	if err != nil {
		return err
	}
	if runOpenURL != "" {
		svc.HandleOpenURL(runOpenURL)
	}

	out := svc.Launch(ctx)
	if out.State != domain.StateRedirectUI {
		fmt.Fprintln(cmd.OutOrStdout(), "native UI")
		return nil
	}

	id, err := svc.OpenSession(ctx)
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "session %s -> %s (%s)\n", id, out.Decision.RedirectURL, out.Decision.UIMode)

	enc := json.NewEncoder(cmd.OutOrStdout())
	events := svc.SubscribeEvents()
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt := <-events:
			_ = enc.Encode(evt)
		}
	}
}
