package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"neurodoc/internal/service"
)

type opFlags struct {
	user string
	file string
	json bool
}

func (f *opFlags) register(cmd *cobra.Command, withUser bool) {
	if withUser {
		cmd.Flags().StringVarP(&f.user, "user", "u", "", "user ID owning the namespace")
	}
	cmd.Flags().BoolVar(&f.json, "json", false, "output the result as JSON")
}

func newStoreCmd(e *env) *cobra.Command {
	f := &opFlags{}
	cmd := &cobra.Command{
		Use:   "store [text|-]",
		Short: "Store a document",
		Long: `Splits the document into chunks, embeds them and stores them in the user's namespace.
The text is read from the argument, from --file, or from stdin when the argument is "-" or missing.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := f.text(cmd, args)
			if err != nil {
				return err
			}
			return e.run(cmd, f, func(rt *Runtime) service.Result {
				return rt.Ops.Store(cmd.Context(), f.user, text)
			}, func(res service.Result) string {
				return fmt.Sprintf("Document stored successfully! (ID: %s)", res.DocID)
			})
		},
	}
	f.register(cmd, true)
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "read the document from a file")
	return cmd
}

func newSearchCmd(e *env) *cobra.Command {
	f := &opFlags{}
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Answer a question from stored documents",
		Long: `Answers the query from the best matching stored chunk.
Queries starting with "summary of" are answered with a summary of the remaining keyword.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.run(cmd, f, func(rt *Runtime) service.Result {
				return rt.Ops.Search(cmd.Context(), f.user, args[0])
			}, nil)
		},
	}
	f.register(cmd, true)
	return cmd
}

func newSummarizeCmd(e *env) *cobra.Command {
	f := &opFlags{}
	cmd := &cobra.Command{
		Use:     "summarize [keyword]",
		Aliases: []string{"summary"},
		Short:   "Summarize stored documents related to a keyword",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.run(cmd, f, func(rt *Runtime) service.Result {
				return rt.Ops.Summarize(cmd.Context(), f.user, args[0])
			}, nil)
		},
	}
	f.register(cmd, true)
	return cmd
}

func newTitleCmd(e *env) *cobra.Command {
	f := &opFlags{}
	cmd := &cobra.Command{
		Use:   "title [text|-]",
		Short: "Suggest a title for a text",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := f.text(cmd, args)
			if err != nil {
				return err
			}
			return e.run(cmd, f, func(rt *Runtime) service.Result {
				return rt.Ops.ExtractTitle(cmd.Context(), text)
			}, func(res service.Result) string {
				return "Suggested Title: " + res.Text
			})
		},
	}
	f.register(cmd, false)
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "read the text from a file")
	return cmd
}

func (f *opFlags) text(cmd *cobra.Command, args []string) (string, error) {
	if f.file != "" {
		data, err := os.ReadFile(f.file)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return readInput(cmd, args)
}

// run builds the runtime, executes op and prints its result.
func (e *env) run(cmd *cobra.Command, f *opFlags, op func(rt *Runtime) service.Result, format func(service.Result) string) error {
	rt, err := e.runtime(cmd, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	res := op(rt)
	if f.json {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		if !res.OK {
			return errReported
		}
		return nil
	}
	if !res.OK {
		cmd.PrintErrln(res.Text)
		return errReported
	}
	out := res.Text
	if format != nil {
		out = format(res)
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}
