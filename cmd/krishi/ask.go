package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/PrathmeshKudale/krishi-mitra/internal/assistant"
)

var askLanguage string

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the crop assistant a single question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, err := assistant.NewGateway(cmd.Context(), cfg.AI, logger.Sugar())
		if err != nil {
			return err
		}
		question := strings.Join(args, " ")

		var lang assistant.Language
		if askLanguage == "" {
			lang = gw.DetectLanguage(cmd.Context(), question)
		} else {
			var ok bool
			if lang, ok = assistant.ParseLanguage(askLanguage); !ok {
				return fmt.Errorf("unsupported language %q", askLanguage)
			}
		}
		answer, err := gw.AnswerFarmingQuestion(cmd.Context(), question, lang)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), answer)
		return nil
	},
}

func init() {
	askCmd.Flags().StringVarP(&askLanguage, "lang", "l", "", "answer language (en, hi, mr, gu, ta, te, kn); detected when empty")
}
