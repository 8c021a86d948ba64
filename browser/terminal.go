package browser

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"github.com/kayushkin/instakit"
)

// Terminal opens the authorize URL in the system browser and asks the
// user to paste the address the browser ended on. Each pasted line is
// treated as a navigation; an empty line or EOF dismisses the login.
type Terminal struct {
	In  io.Reader
	Out io.Writer
	// Open launches a URL; defaults to the platform opener.
	Open func(url string) error

	mu     sync.Mutex
	cancel context.CancelFunc
	lines  <-chan string
}

func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{In: in, Out: out, Open: openBrowser}
}

func (t *Terminal) Present(ctx context.Context, authURL string, d instakit.NavigationDelegate) error {
	fmt.Fprintln(t.Out, "Open this URL in your browser:")
	fmt.Fprintln(t.Out, authURL)
	if t.Open != nil {
		if err := t.Open(authURL); err != nil {
			fmt.Fprintf(t.Out, "(could not open browser: %v)\n", err)
		}
	}
	fmt.Fprint(t.Out, "Paste the URL you were redirected to: ")

	ctx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.cancel = cancel
	if t.lines == nil {
		t.lines = scanLines(t.In)
	}
	lines := t.lines
	t.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case line, ok := <-lines:
				line = strings.TrimSpace(line)
				if !ok || line == "" {
					d.Dismissed()
					return
				}
				if d.DecideNavigation(line) == instakit.PolicyCancel {
					return
				}
				fmt.Fprint(t.Out, "No access token in that URL, try again: ")
			}
		}
	}()
	return nil
}

func (t *Terminal) Dismiss() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
	}
}

// scanLines reads r until EOF. The reader goroutine outlives a single
// login because a blocked read cannot be interrupted.
func scanLines(r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		s := bufio.NewScanner(r)
		for s.Scan() {
			ch <- s.Text()
		}
	}()
	return ch
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}
	return cmd.Start()
}
