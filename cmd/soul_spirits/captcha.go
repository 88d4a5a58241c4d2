package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/soul-spirits/internal/captcha"
	"github.com/jonathan/soul-spirits/internal/config"
	"github.com/jonathan/soul-spirits/internal/validation"
)

var captchaCmd = &cobra.Command{
	Use:   "captcha",
	Short: "Issue a sample verification challenge",
	Long: `Issues a challenge the way the profile form does and prints its question and token.
With --token and --answer, redeems a previously issued token instead. Tokens only
redeem against the same CAPTCHA_SECRET, and each one redeems once per process.`,
	RunE: runCaptcha,
}

var (
	captchaToken  string
	captchaAnswer string
	captchaJSON   bool
)

func init() {
	captchaCmd.Flags().StringVar(&captchaToken, "token", "", "Token to redeem")
	captchaCmd.Flags().StringVar(&captchaAnswer, "answer", "", "Answer to check against --token")
	captchaCmd.Flags().BoolVar(&captchaJSON, "json", false, "Print the challenge as JSON")
	captchaCmd.MarkFlagsRequiredTogether("token", "answer")

	rootCmd.AddCommand(captchaCmd)
}

func runCaptcha(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.NewCaptchaConfig()
	if err != nil {
		return fmt.Errorf("failed to create captcha config: %w", err)
	}
	issuer, err := captcha.NewIssuer(cfg.Secret, captcha.WithTTL(time.Duration(cfg.TTLMinutes)*time.Minute))
	if err != nil {
		return err
	}

	if captchaToken != "" {
		expected, err := issuer.Redeem(captchaToken)
		if err != nil {
			return err
		}
		if err := validation.CheckAnswer(expected, captchaAnswer); err != nil {
			return err
		}
		fmt.Fprintln(out, "✓ correct")
		return nil
	}

	challenge, err := issuer.Issue()
	if err != nil {
		return err
	}
	if captchaJSON {
		return writeJSON(out, challenge)
	}

	fmt.Fprintf(out, "Question:   %s\n", challenge.Question())
	fmt.Fprintf(out, "Answer:     %d\n", challenge.A+challenge.B)
	fmt.Fprintf(out, "Expires at: %s\n", challenge.ExpiresAt.Format(time.RFC3339))
	fmt.Fprintf(out, "Token:      %s\n", challenge.Token)
	if cfg.Ephemeral {
		fmt.Fprintln(cmd.ErrOrStderr(), "note: CAPTCHA_SECRET is not set, so this token cannot be redeemed by another process")
	}
	return nil
}
