package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/service/catalog"
)

func newSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert or refresh the built-in prompts and validation criteria",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			res, err := catalog.NewService(a.repos).Seed(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "prompts: %d created, %d updated\ncriteria: %d created, %d updated\n",
				res.PromptsCreated, res.PromptsUpdated, res.CriteriaCreated, res.CriteriaUpdated)
			return nil
		},
	}
}
