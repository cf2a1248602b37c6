package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var compareCmd = &cobra.Command{
	Use:   "compare <rfp-id>",
	Short: "Rank the recorded proposals of an RFP, best first",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		logger := newLogger()

		rfpID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || rfpID <= 0 {
			logger.Fatal("invalid rfp id", zap.String("rfp_id", args[0]))
		}

		config := loadConfig(logger)

		st, err := openStore(ctx, config)
		if err != nil {
			logger.Fatal("opening the database", zap.Error(err))
		}
		defer st.Close()

		pipeline, err := newPipeline(ctx, config, st, logger)
		if err != nil {
			logger.Fatal("creating the pipeline", zap.Error(err))
		}

		cmp, err := pipeline.Compare(ctx, rfpID)
		if err != nil {
			logger.Fatal("comparing proposals", zap.Error(err))
		}

		logger.Info("proposals ranked", zap.String("rfp", cmp.RFP.Title), zap.Int("count", len(cmp.Proposals)))

		pretty, _ := json.MarshalIndent(cmp.Proposals, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(pretty))
	},
}

func init() {
	rootCmd.AddCommand(compareCmd)
}
