package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dutylens/dutylens/internal/pillar"
	"github.com/dutylens/dutylens/internal/rules"
)

var httpClient = &http.Client{Timeout: 15 * time.Second}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage structured rule sets on a dutylens server",
}

var rulesGetCmd = &cobra.Command{
	Use:   "get <pillar>",
	Short: "Fetch the stored rule set for a pillar",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, ok := pillar.Parse(args[0])
		if !ok {
			return fmt.Errorf("unknown pillar %q", args[0])
		}

		body, err := apiGet("/rulesets/" + string(p))
		if err != nil {
			return err
		}
		return printJSON(cmd, body)
	},
}

var rulesPutCmd = &cobra.Command{
	Use:   "put <pillar> <ruleset.yaml>",
	Short: "Upload a YAML rule set for a pillar",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, ok := pillar.Parse(args[0])
		if !ok {
			return fmt.Errorf("unknown pillar %q", args[0])
		}

		data, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		var rs rules.RuleSet
		if err := yaml.Unmarshal(data, &rs); err != nil {
			return fmt.Errorf("failed to parse rule set: %w", err)
		}
		rs.Pillar = p
		if err := rs.Validate(); err != nil {
			return err
		}

		payload, err := json.Marshal(rs)
		if err != nil {
			return err
		}

		req, err := http.NewRequest(http.MethodPut, serverURL+"/rulesets/"+string(p), bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		if _, err := doAPI(req); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Stored %d rule(s) for %s.\n", len(rs.Rules), p)
		return nil
	},
}

var rulesDeleteCmd = &cobra.Command{
	Use:   "delete <pillar>",
	Short: "Delete the stored rule set for a pillar",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, ok := pillar.Parse(args[0])
		if !ok {
			return fmt.Errorf("unknown pillar %q", args[0])
		}

		req, err := http.NewRequest(http.MethodDelete, serverURL+"/rulesets/"+string(p), nil)
		if err != nil {
			return err
		}
		if _, err := doAPI(req); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted rule set for %s.\n", p)
		return nil
	},
}

func init() {
	rulesCmd.AddCommand(rulesGetCmd, rulesPutCmd, rulesDeleteCmd)
	rootCmd.AddCommand(rulesCmd)
}

func apiGet(path string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, serverURL+path, nil)
	if err != nil {
		return nil, err
	}
	return doAPI(req)
}

func doAPI(req *http.Request) ([]byte, error) {
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return body, nil
}

func printJSON(cmd *cobra.Command, body []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		cmd.Print(string(body))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), buf.String())
	return nil
}
