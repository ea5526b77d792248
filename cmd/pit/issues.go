package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/iaptsiauri/pit/internal/issues"
)

var (
	issuesLimit  int
	issuesOutput string
)

var issuesCmd = &cobra.Command{
	Use:   "issues [query]",
	Short: "Search Linear issues to start tasks from",
	Long: `List open Linear issues assigned to you, or search all issues when a
query is given. Start a task from one with:

  pit new --issue <url>

Requires linear.api_key (or LINEAR_API_KEY).`,
	RunE: withApp(runIssues),
}

func init() {
	issuesCmd.Flags().IntVarP(&issuesLimit, "limit", "n", 20, "Maximum number of issues")
	issuesCmd.Flags().StringVarP(&issuesOutput, "output", "o", formatTable, "Output format: table, json or yaml")
}

func runIssues(cmd *cobra.Command, a *app, args []string) error {
	client := issues.NewClient(a.cfg.Linear.APIKey, a.cfg.GitHub.Token)
	query := strings.TrimSpace(strings.Join(args, " "))

	var (
		list []issues.Issue
		err  error
	)
	if query == "" {
		list, err = client.AssignedLinear(cmd.Context(), issuesLimit)
	} else {
		list, err = client.SearchLinear(cmd.Context(), query, issuesLimit)
	}
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if issuesOutput != formatTable {
		if list == nil {
			list = []issues.Issue{}
		}
		return writeStructured(w, issuesOutput, list)
	}
	if len(list) == 0 {
		fmt.Fprintln(w, "No issues found.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATE\tTITLE\tURL")
	for _, is := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", is.Identifier, is.State, is.Title, is.URL)
	}
	return tw.Flush()
}
