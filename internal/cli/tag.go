package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewTagCmd создаёт группу команд для управления тегами конфигурации.
func NewTagCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Manage configuration tags",
	}

	cmd.AddCommand(
		newTagListCmd(clientFn, outputFn),
		newTagClearCmd(clientFn, outputFn),
	)

	return cmd
}

func newTagListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configuration tags",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			tags, err := client.ListTags()
			if err != nil {
				return err
			}

			rows := make([][]string, len(tags))
			for i, tag := range tags {
				rows[i] = []string{tag}
			}

			out.Print([]string{"TAG"}, rows, tags)
			return nil
		},
	}
}

func newTagClearCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "clear TAG",
		Short: "Remove everything registered under a tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			res, err := client.ClearTag(args[0])
			if err != nil {
				return err
			}

			msg := fmt.Sprintf("Tag cleared: %s", res.Tag)
			if res.Published {
				msg += " (cluster notified)"
			}
			out.Success(msg)
			return nil
		},
	}
}
