package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kuhandran/Content-Hub-sub001/internal/client"
	"github.com/kuhandran/Content-Hub-sub001/internal/model"
)

var getCmd = &cobra.Command{
	Use:     "get <lang> <folder> <file>",
	Short:   "Resolve a collection document (cache, then database, then filesystem)",
	GroupID: "content",
	Args:    cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		folder, err := model.ParseFolder(args[1])
		if err != nil {
			return err
		}
		path, _ := cmd.Flags().GetString("path")
		meta, _ := cmd.Flags().GetBool("meta")
		raw, _ := cmd.Flags().GetBool("raw")

		res, err := hubClient.GetCollection(context.Background(), &client.GetRequest{
			Language: args[0],
			Folder:   folder,
			Filename: args[2],
			Meta:     meta,
			Path:     path,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		switch {
		case jsonOutput:
			printJSON(out, res)
		case raw:
			_, err = out.Write(res.Body())
			return err
		default:
			printResult(out, res)
		}
		return nil
	},
}

var putCmd = &cobra.Command{
	Use:     "put <lang> <folder> <file> <document.json|->",
	Short:   "Write a collection document and invalidate its cache entries",
	GroupID: "content",
	Args:    cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		folder, err := model.ParseFolder(args[1])
		if err != nil {
			return err
		}
		doc, err := readInput(cmd.InOrStdin(), args[3])
		if err != nil {
			return err
		}
		if !json.Valid(doc) {
			return fmt.Errorf("%s is not valid JSON", args[3])
		}

		resp, err := hubClient.PutCollection(context.Background(), args[0], folder, args[2], doc)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(cmd.OutOrStdout(), resp)
			return nil
		}
		printWrite(cmd.OutOrStdout(), args[0]+"/"+string(folder)+"/"+args[2], resp)
		return nil
	},
}

var rmCmd = &cobra.Command{
	Use:     "rm <lang> <folder> <file>",
	Short:   "Delete a collection document",
	GroupID: "content",
	Args:    cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		folder, err := model.ParseFolder(args[1])
		if err != nil {
			return err
		}
		resp, err := hubClient.DeleteCollection(context.Background(), args[0], folder, args[2])
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(cmd.OutOrStdout(), resp)
			return nil
		}
		printWrite(cmd.OutOrStdout(), args[0]+"/"+string(folder)+"/"+args[2], resp)
		return nil
	},
}

var lsCmd = &cobra.Command{
	Use:     "ls",
	Short:   "List collection documents",
	GroupID: "content",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		lang, _ := cmd.Flags().GetString("lang")
		folderArg, _ := cmd.Flags().GetString("folder")

		filter := model.CollectionFilter{Language: lang}
		if folderArg != "" {
			folder, err := model.ParseFolder(folderArg)
			if err != nil {
				return err
			}
			filter.Type = folder
		}

		recs, err := hubClient.ListCollections(context.Background(), filter)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(cmd.OutOrStdout(), recs)
			return nil
		}
		printCollections(cmd.OutOrStdout(), recs)
		return nil
	},
}

var filesCmd = &cobra.Command{
	Use:   "files <table> [<file>]",
	Short: "List a file table, or resolve, write or delete one of its files",
	Long: `List a file table, or resolve, write or delete one of its files.

Tables: static_files, config_files, data_files, javascript_files, images,
resumes. Only the text tables accept --put and --rm.`,
	GroupID: "content",
	Args:    cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := model.ParseTable(args[0])
		if err != nil {
			return err
		}
		ctx := context.Background()
		out := cmd.OutOrStdout()

		if len(args) == 1 {
			files, err := hubClient.ListFiles(ctx, table)
			if err != nil {
				return err
			}
			if jsonOutput {
				printJSON(out, files)
				return nil
			}
			printFiles(out, table, files)
			return nil
		}

		filename := args[1]
		putPath, _ := cmd.Flags().GetString("put")
		remove, _ := cmd.Flags().GetBool("rm")
		if putPath != "" && remove {
			return fmt.Errorf("--put and --rm are mutually exclusive")
		}

		var resp *client.WriteResponse
		switch {
		case putPath != "":
			body, err := readInput(cmd.InOrStdin(), putPath)
			if err != nil {
				return err
			}
			resp, err = hubClient.PutFile(ctx, table, filename, body)
			if err != nil {
				return err
			}
		case remove:
			resp, err = hubClient.DeleteFile(ctx, table, filename)
			if err != nil {
				return err
			}
		default:
			if table.IsBinary() {
				return fmt.Errorf("%s holds binary assets; fetch them with GET %s/v1/files/%s/%s", table, serverURL, table, filename)
			}
			path, _ := cmd.Flags().GetString("path")
			res, err := hubClient.GetFile(ctx, table, filename, path)
			if err != nil {
				return err
			}
			if jsonOutput {
				printJSON(out, res)
			} else {
				printResult(out, res)
			}
			return nil
		}

		if jsonOutput {
			printJSON(out, resp)
			return nil
		}
		printWrite(out, string(table)+"/"+filename, resp)
		return nil
	},
}

// readInput reads a file argument; "-" reads stdin.
func readInput(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}

func init() {
	getCmd.Flags().String("path", "", "JSONPath selection applied to the document (e.g. $.skills[0])")
	getCmd.Flags().Bool("meta", false, "resolve the metadata entry instead of the content")
	getCmd.Flags().Bool("raw", false, "print only the payload")

	lsCmd.Flags().String("lang", "", "filter by language code")
	lsCmd.Flags().String("folder", "", "filter by folder (config or data)")

	filesCmd.Flags().String("path", "", "JSONPath selection for JSON files")
	filesCmd.Flags().String("put", "", "write the file from a local path (- for stdin)")
	filesCmd.Flags().Bool("rm", false, "delete the file")
}
