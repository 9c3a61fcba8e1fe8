package run

import (
	"github.com/Mmx233/FSearch/client"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	searchCmd = &cobra.Command{
		Use:   "search <keyword>...",
		Short: "Search once for each keyword and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSearch,
	}
)

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadClientConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	s, err := client.Dial(ctx, cfg, log.Logger)
	if err != nil {
		return err
	}
	defer s.Disconnect()

	out := cmd.OutOrStdout()
	for _, keyword := range args {
		result, err := s.Search(ctx, keyword)
		if err != nil {
			return err
		}
		printResult(out, keyword, result)
	}
	return nil
}
