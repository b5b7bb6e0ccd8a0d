package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tripwatch/internal/app"
)

var (
	windowOrigin      string
	windowDestination string
	windowDate        string
	windowDays        int
	windowTopN        int
	windowPNGPath     string
	windowCSVPath     string
)

var windowCmd = &cobra.Command{
	Use:   "window",
	Short: "Analyze prices across a date window around a travel date",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.WindowOptions{
			Origin:      windowOrigin,
			Destination: windowDestination,
			Days:        windowDays,
			TopN:        windowTopN,
			PNGPath:     windowPNGPath,
			CSVPath:     windowCSVPath,
		}

		if windowDate != "" {
			center, err := time.Parse("2006-01-02", windowDate)
			if err != nil {
				return fmt.Errorf("invalid --date value: %w", err)
			}
			opts.Center = center
		}

		return getApp().Window(cmd.Context(), opts)
	},
}

func init() {
	windowCmd.Flags().StringVar(&windowOrigin, "origin", "", "Origin city or airport code")
	windowCmd.Flags().StringVar(&windowDestination, "destination", "", "Destination city or airport code")
	windowCmd.Flags().StringVar(&windowDate, "date", "", "Center travel date (YYYY-MM-DD)")
	windowCmd.Flags().IntVar(&windowDays, "days", 0, "Days on each side of the center date (defaults to config)")
	windowCmd.Flags().IntVar(&windowTopN, "top", 0, "Number of recommended dates (defaults to config)")
	windowCmd.Flags().StringVar(&windowPNGPath, "png", "", "Path to write PNG chart")
	windowCmd.Flags().StringVar(&windowCSVPath, "csv", "", "Path to write CSV data")
}
