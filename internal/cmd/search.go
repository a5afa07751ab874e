package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/zonat/internal/search"
	"github.com/MeKo-Tech/zonat/internal/types"
)

var searchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Geocode an address, restricted to the delivery area when --mid is set",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().Bool("autocomplete", false, "Use the autocomplete endpoint")
	searchCmd.Flags().Int("size", 10, "Maximum number of results")

	if err := viper.BindPFlag("search.autocomplete", searchCmd.Flags().Lookup("autocomplete")); err != nil {
		panic(fmt.Sprintf("failed to bind flag: %v", err))
	}
	if err := viper.BindPFlag("search.size", searchCmd.Flags().Lookup("size")); err != nil {
		panic(fmt.Sprintf("failed to bind flag: %v", err))
	}
}

func runSearch(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	text := strings.Join(args, " ")

	var boundary *types.BoundingBox
	if viper.GetString("map.mid") != "" {
		_, res, err := loadMap(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to load delivery area: %w", err)
		}
		boundary = res.SearchBounds
	}

	cfg := searchConfig(boundary)
	cfg.Size = viper.GetInt("search.size")
	client := search.New(cfg)

	var (
		results []search.Result
		err     error
	)
	if viper.GetBool("search.autocomplete") {
		results, err = client.Autocomplete(cmd.Context(), text)
	} else {
		results, err = client.Search(cmd.Context(), text)
	}
	if err != nil {
		return err
	}

	return printResults(cmd.OutOrStdout(), results)
}

func printResults(w io.Writer, results []search.Result) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "No results")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LABEL\tLAYER\tLON\tLAT")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%.6f\t%.6f\n", r.Label, r.Layer, r.Point.Lon(), r.Point.Lat())
	}
	return tw.Flush()
}
