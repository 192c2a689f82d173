package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewWorkflowCmd создаёт группу команд для работы с workflow.
func NewWorkflowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Inspect, process and export workflows",
	}

	cmd.AddCommand(
		newWorkflowListCmd(clientFn, outputFn),
		newWorkflowShowCmd(clientFn, outputFn),
		newWorkflowProcessCmd(clientFn, outputFn),
		newWorkflowExportCmd(clientFn, outputFn),
	)

	return cmd
}

var workflowHeaders = []string{"ID", "HEAP", "TYPES", "CACHED", "STORES"}

func workflowRow(wf WorkflowResponse) []string {
	return []string{
		wf.ID,
		wf.HeapID,
		strings.Join(wf.Types, ","),
		strconv.FormatBool(wf.Cached),
		strconv.Itoa(wf.Stores),
	}
}

func newWorkflowListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			workflows, err := client.ListWorkflows()
			if err != nil {
				return err
			}

			rows := make([][]string, len(workflows))
			for i, wf := range workflows {
				rows[i] = workflowRow(wf)
			}

			out.Print(workflowHeaders, rows, workflows)
			return nil
		},
	}
}

func newWorkflowShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show workflow details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			wf, err := client.GetWorkflow(args[0])
			if err != nil {
				return err
			}

			out.Print(workflowHeaders, [][]string{workflowRow(*wf)}, wf)
			return nil
		},
	}
}

func newWorkflowProcessCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "process ID",
		Short: "Process a workflow and list its resources, or print one with --path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if path != "" {
				data, _, err := client.FetchResource(args[0], path)
				if err != nil {
					return err
				}
				out.Raw(data)
				return nil
			}

			resources, err := client.ProcessWorkflow(args[0])
			if err != nil {
				return err
			}

			headers := []string{"NAME", "TYPE", "VERSION", "ENCODING", "URL"}
			rows := make([][]string, len(resources))
			for i, r := range resources {
				rows[i] = []string{r.Name, r.Type, r.Version, r.Encoding, r.URL}
			}

			out.Print(headers, rows, resources)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Print the processed resource with this name")

	return cmd
}

func newWorkflowExportCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "export ID",
		Short: "Export a workflow into its output stores",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			res, err := client.ExportWorkflow(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Workflow exported: %s (%d resources, %d stores)", res.WorkflowID, len(res.Saved), res.Stores))

			rows := make([][]string, len(res.Saved))
			for i, name := range res.Saved {
				rows[i] = []string{name}
			}
			out.Print([]string{"SAVED"}, rows, res)
			return nil
		},
	}
}
