package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/rfp-intake/internal/intake"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var confirmPrompt = promptui.Select{
	Label: "Record this proposal?",
	Items: []string{PromptYes, PromptNo},
}

var intakeCmd = &cobra.Command{
	Use:   "intake",
	Short: "Record a vendor response from a file, as the manual-response endpoint does",
	Run: func(cmd *cobra.Command, _ []string) {
		manualIntake(cmd)
	},
}

func init() {
	rootCmd.AddCommand(intakeCmd)

	intakeCmd.Flags().StringP("file", "f", "", "file with the vendor's response text, - for stdin")
	intakeCmd.Flags().Int64P("rfp", "r", 0, "RFP id the response answers")
	intakeCmd.Flags().Int64("vendor", 0, "vendor id (takes precedence over --vendor-email)")
	intakeCmd.Flags().String("vendor-email", "", "vendor email; every vendor under it gets the proposal")
	intakeCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation")

	intakeCmd.MarkFlagRequired("file")
	intakeCmd.MarkFlagRequired("rfp")
}

func manualIntake(cmd *cobra.Command) {
	ctx := context.Background()
	logger := newLogger()
	config := loadConfig(logger)

	file, _ := cmd.Flags().GetString("file")
	rfpID, _ := cmd.Flags().GetInt64("rfp")
	vendorID, _ := cmd.Flags().GetInt64("vendor")
	vendorEmail, _ := cmd.Flags().GetString("vendor-email")
	autoApprove, _ := cmd.Flags().GetBool("auto-approve")

	body, err := readBody(cmd, file)
	if err != nil {
		logger.Fatal("reading the response", zap.Error(err))
	}

	st, err := openStore(ctx, config)
	if err != nil {
		logger.Fatal("opening the database", zap.Error(err))
	}
	defer st.Close()

	pipeline, err := newPipeline(ctx, config, st, logger)
	if err != nil {
		logger.Fatal("creating the pipeline", zap.Error(err))
	}

	preview, err := pipeline.Parse(ctx, body)
	if err != nil {
		logger.Fatal("parsing the response", zap.Error(err))
	}
	pretty, _ := json.MarshalIndent(preview, "", "  ")
	logger.Info(string(pretty), zap.Int64("rfp_id", rfpID))

	if !autoApprove {
		_, action, err := confirmPrompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
		if action != PromptYes {
			logger.Info("exiting", zap.String("reason", "got no from prompt"))
			return
		}
	}

	result, err := pipeline.ProcessManual(ctx, uuid.NewString(), intake.Submission{
		VendorID:    vendorID,
		VendorEmail: vendorEmail,
		RFPID:       rfpID,
		Body:        body,
	})
	if result != nil {
		pretty, _ := json.MarshalIndent(result, "", "  ")
		logger.Info(string(pretty))
	}
	if err != nil {
		var ierr *intake.Error
		if errors.As(err, &ierr) && ierr.Hint != "" {
			logger.Fatal("recording the response", zap.Error(err), zap.String("hint", ierr.Hint))
		}
		logger.Fatal("recording the response", zap.Error(err))
	}

	logger.Info(result.Message(), zap.String("method", result.Method))
}

func readBody(cmd *cobra.Command, file string) (string, error) {
	if file == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", file, err)
	}
	return string(data), nil
}
