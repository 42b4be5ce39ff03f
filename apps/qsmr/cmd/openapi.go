package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/quatton/qsmr/pkg/qapi"
	"github.com/quatton/qsmr/pkg/qapi/routes"
	"github.com/spf13/cobra"
)

var (
	openapiOutput    string
	openapiDowngrade bool
)

var openapiCmd = &cobra.Command{
	Use:               "openapi",
	Short:             "Print the OpenAPI document of the reports API",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		api := qapi.NewApi()
		routes.RegisterAPI(api.Api, nil)

		var (
			spec []byte
			err  error
		)
		if openapiDowngrade {
			spec, err = api.Api.OpenAPI().Downgrade()
		} else {
			spec, err = json.Marshal(api.Api.OpenAPI())
		}
		if err != nil {
			return fmt.Errorf("generating OpenAPI document: %w", err)
		}

		if openapiOutput == "" {
			fmt.Fprintln(cmd.OutOrStdout(), string(spec))
			return nil
		}
		return os.WriteFile(openapiOutput, spec, 0644)
	},
}

func init() {
	rootCmd.AddCommand(openapiCmd)
	openapiCmd.Flags().StringVarP(&openapiOutput, "output", "o", "", "Write output to file (default stdout)")
	openapiCmd.Flags().BoolVar(&openapiDowngrade, "downgrade", true, "Downgrade OpenAPI to 3.0")
}
