package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	internalconfig "github.com/DrSkyle/fleetledger/pkg/config"
	"github.com/DrSkyle/fleetledger/pkg/engine/aws"
)

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "List the account's enabled regions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		awsClient, err := aws.NewClient(ctx, internalconfig.DefaultRegion, flagProfile, flagVerbose)
		if err != nil {
			return fmt.Errorf("failed to create AWS client: %w", err)
		}

		regions, err := aws.NewEC2Source(awsClient.Config).Regions(ctx)
		if err != nil {
			return err
		}
		for _, r := range regions {
			fmt.Println(r)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(regionsCmd)
}
