package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"comicgrabber/pkg/auth"
	"comicgrabber/pkg/ui"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage per-site session cookies",
	Long: `Manage the browser session cookies comicgrabber sends to each site.

Cookies are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables COMICGRABBER_<SITE>_COOKIE (read only)

Never share your cookies or the encrypted session file!`,
}

// authSetCmd represents the auth set command
var authSetCmd = &cobra.Command{
	Use:   "set <site>",
	Short: "Store the session cookie for a site",
	Example: `  # Interactive, with the extraction guide
  comicgrabber auth set kakaopage

  # Non-interactive
  echo "$COOKIE" | comicgrabber auth set 11toon --stdin`,
	Args: cobra.ExactArgs(1),
	RunE: runAuthSet,
}

// authListCmd represents the auth list command
var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions",
	Args:  cobra.NoArgs,
	RunE:  runAuthList,
}

// authRemoveCmd represents the auth remove command
var authRemoveCmd = &cobra.Command{
	Use:   "remove <site>",
	Short: "Remove a stored session",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuthRemove,
}

var (
	authFromStdin bool
	authUserAgent string
	authRemoveAll bool
)

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authSetCmd)
	authCmd.AddCommand(authListCmd)
	authCmd.AddCommand(authRemoveCmd)

	authSetCmd.Flags().BoolVar(&authFromStdin, "stdin", false, "read the cookie from stdin without prompting")
	authSetCmd.Flags().StringVar(&authUserAgent, "user-agent", "", "user agent of the browser the cookie came from")
	authRemoveCmd.Flags().BoolVar(&authRemoveAll, "all", false, "remove every stored session")
}

func knownSite(site string) bool {
	site = auth.NormalizeSite(site)
	for _, s := range auth.KnownSites {
		if s == site {
			return true
		}
	}
	return false
}

func runAuthSet(cmd *cobra.Command, args []string) error {
	site := auth.NormalizeSite(args[0])
	if !knownSite(site) {
		return fmt.Errorf("unknown site %q (see 'comicgrabber sites')", site)
	}

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	reader := bufio.NewReader(os.Stdin)
	var cookie string
	if authFromStdin {
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read cookie: %w", err)
		}
		cookie = strings.TrimSpace(line)
	} else {
		auth.ShowCookieExtractionGuide(os.Stdout, site)

		if existing, _ := manager.Retrieve(site); existing != nil {
			fmt.Printf("\n⚠️  A session for '%s' already exists. Replace it? (y/N): ", site)
			input, _ := reader.ReadString('\n')
			if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
				return nil
			}
		}

		fmt.Print("\n🔐 Cookie header value (hidden): ")
		cookie, err = readSecret(reader)
		if err != nil {
			return fmt.Errorf("failed to read cookie: %w", err)
		}
	}

	if cookie == "" {
		return errors.New("cookie is required")
	}
	if !strings.Contains(cookie, "=") {
		return errors.New("that does not look like a Cookie header: expected name=value pairs")
	}

	session := &auth.Session{Site: site, Cookie: cookie, UserAgent: authUserAgent}
	if err := manager.Store(session); err != nil {
		return err
	}

	ui.PrintSuccess(fmt.Sprintf("Session saved for %s: %s", site, auth.SanitizeSession(session).Cookie))
	if auth.IsKeyringAvailable() {
		ui.PrintInfo("Stored in", "system keychain")
	} else {
		ui.PrintInfo("Stored in", "encrypted file")
	}
	return nil
}

func runAuthList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	sessions, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(sessions) == 0 {
		ui.PrintInfo("No stored sessions", "Use 'comicgrabber auth set <site>' to add one")
		return nil
	}

	ui.PrintHighlight("Stored Sessions")
	fmt.Println()
	for i, s := range sessions {
		clean := auth.SanitizeSession(s)
		fmt.Printf("%d. Site: %s\n", i+1, clean.Site)
		fmt.Printf("   Cookie: %s\n", clean.Cookie)
		if clean.UserAgent != "" {
			fmt.Printf("   User Agent: %s\n", clean.UserAgent)
		}
		fmt.Printf("   Last Modified: %s\n", clean.LastModified.Format("2006-01-02 15:04:05"))
		fmt.Println()
	}
	return nil
}

func runAuthRemove(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if authRemoveAll {
		if err := manager.DeleteAll(); err != nil {
			return err
		}
		ui.PrintSuccess("All sessions removed")
		return nil
	}
	if len(args) == 0 {
		return errors.New("site is required (or pass --all)")
	}

	site := auth.NormalizeSite(args[0])
	if err := manager.Delete(site); err != nil {
		return err
	}
	ui.PrintSuccess("Session removed: " + site)
	return nil
}

// readSecret reads a line from stdin without echoing when stdin is a terminal
func readSecret(reader *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
