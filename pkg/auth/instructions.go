package auth

import (
	"fmt"
	"io"
	"strings"

	"comicgrabber/pkg/sites"
)

// KnownSites lists the sites a session can be stored for
var KnownSites = sites.Names()

// ShowCookieExtractionGuide writes step-by-step instructions for copying a
// site's Cookie header out of the browser
func ShowCookieExtractionGuide(w io.Writer, site string) {
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintf(w, "🍪 COOKIE EXTRACTION GUIDE (%s)\n", site)
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Some episodes are only served to a logged-in browser. comicgrabber")
	fmt.Fprintln(w, "replays that browser's cookies when it fetches pages and images.")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "🌐 STEP 1: Log in to the site in your browser and open any episode")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "🔧 STEP 2: Open Developer Tools")
	fmt.Fprintln(w, "   • Chrome/Edge/Brave/Firefox: F12 or Ctrl+Shift+I (Cmd+Option+I on Mac)")
	fmt.Fprintln(w, "   • Safari: enable the Develop menu, then Cmd+Option+I")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "📡 STEP 3: Network tab → refresh → click the page request")
	fmt.Fprintln(w, "   Under 'Request Headers' copy the whole value of the 'Cookie:' line")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "⚠️  SECURITY WARNING:")
	fmt.Fprintln(w, "   • The cookie gives access to your account. Never share it.")
	fmt.Fprintln(w, "   • comicgrabber stores it in the system keychain or an encrypted file.")
	fmt.Fprintf(w, "   • It can also be supplied as %s.\n", EnvKey(site))
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 80))
}

// ShowQuickExtractGuide writes a one-line reminder for experienced users
func ShowQuickExtractGuide(w io.Writer) {
	fmt.Fprintln(w, "\n🍪 Quick Guide: F12 → Network → Refresh → page request → Headers → Cookie")
	fmt.Fprintln(w, "   Type 'help' for detailed instructions")
}
