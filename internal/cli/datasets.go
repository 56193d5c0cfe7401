package cli

import (
	"bytes"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "Upload and inspect datasets on a dutylens server",
}

var datasetsUploadCmd = &cobra.Command{
	Use:   "upload <file.csv>",
	Short: "Upload a CSV extract; the filename selects the dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		name := filepath.Base(args[0])
		req, err := http.NewRequest(http.MethodPost, serverURL+"/datasets/"+name, bytes.NewReader(data))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "text/csv")

		body, err := doAPI(req)
		if err != nil {
			return err
		}
		return printJSON(cmd, body)
	},
}

var datasetsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show required dataset ingestion status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := apiGet("/datasets/status")
		if err != nil {
			return err
		}
		return printJSON(cmd, body)
	},
}

var datasetsAnalyzeCmd = &cobra.Command{
	Use:   "analyze <pillar>",
	Short: "Run a server-side analysis of a pillar's stored dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := http.NewRequest(http.MethodPost, serverURL+"/analyze/"+args[0], nil)
		if err != nil {
			return err
		}

		body, err := doAPI(req)
		if err != nil {
			return err
		}
		return printJSON(cmd, body)
	},
}

func init() {
	datasetsCmd.AddCommand(datasetsUploadCmd, datasetsStatusCmd, datasetsAnalyzeCmd)
	rootCmd.AddCommand(datasetsCmd)
}
