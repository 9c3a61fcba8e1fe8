package run

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Mmx233/FSearch/client"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	clientCmd = &cobra.Command{
		Use:   "client",
		Short: "Start interactive search client",
		Args:  cobra.NoArgs,
		RunE:  runClient,
	}
)

func runClient(cmd *cobra.Command, args []string) error {
	logger := log.With().Str("com", "client-cmd").Logger()

	cfg, err := loadClientConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	logger.Info().Str("server", cfg.Server).Msg("trying to connect to the server")
	s, err := client.Dial(ctx, cfg, log.Logger)
	if err != nil {
		return err
	}
	defer s.Disconnect()

	out := cmd.OutOrStdout()
	for _, w := range s.Welcome() {
		fmt.Fprintln(out, w)
	}
	fmt.Fprintln(out, s.Ack())

	return menu(ctx, s, cmd.InOrStdin(), out)
}

type searcher interface {
	Search(ctx context.Context, keyword string) (string, error)
}

// menu runs the interactive loop until the user exits, input ends or a
// search fails.
func menu(ctx context.Context, s searcher, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	readLine := func() (string, bool) {
		if !scanner.Scan() {
			return "", false
		}
		return strings.TrimSpace(scanner.Text()), true
	}

	for {
		fmt.Fprintln(out, "1 - Search Files")
		fmt.Fprintln(out, "2 - Exit")

		option, ok := readLine()
		for ok && option != "1" && option != "2" {
			fmt.Fprintln(out, "Please enter a correct option")
			option, ok = readLine()
		}
		if !ok || option == "2" {
			return scanner.Err()
		}

		fmt.Fprintln(out, "Enter a keyword:")
		keyword, ok := readLine()
		for ok && keyword == "" {
			fmt.Fprintln(out, "Please enter a valid word")
			keyword, ok = readLine()
		}
		if !ok {
			return scanner.Err()
		}

		result, err := s.Search(ctx, keyword)
		if err != nil {
			fmt.Fprintf(out, "Search failed: %v\n", err)
			return err
		}
		printResult(out, keyword, result)
	}
}

func printResult(out io.Writer, keyword, result string) {
	files := client.Files(result)
	if len(files) == 0 {
		fmt.Fprintln(out, "No files found")
		return
	}
	fmt.Fprintf(out, "Files containing %q:\n", keyword)
	for _, f := range files {
		fmt.Fprintf(out, "  - %s\n", f)
	}
}
