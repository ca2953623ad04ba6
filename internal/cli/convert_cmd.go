package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tabjson/internal/config"
	"github.com/JonMunkholm/tabjson/internal/core"
	"github.com/JonMunkholm/tabjson/internal/sink"
	"github.com/JonMunkholm/tabjson/internal/table"
)

type convertOptions struct {
	policy   string
	noHeader bool
	indent   bool
	out      string
	name     string

	endpoint  string
	container string
	blob      string
}

func (o convertOptions) upload() bool {
	return o.endpoint != "" || o.container != "" || o.blob != ""
}

func newConvertCmd(stdin io.Reader) *cobra.Command {
	var opts convertOptions

	cmd := &cobra.Command{
		Use:   "convert FILE",
		Short: "Convert a CSV or Excel file to JSON",
		Long: `Reads FILE (or standard input when FILE is "-") and writes the JSON document.

The format is taken from the file extension; with standard input, --name
supplies it. When any of --endpoint, --container or --blob is set the
document is uploaded to the sink named by SINK_PROVIDER instead, and all
three are required.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return userError(runConvert(cmd, args[0], opts, stdin))
		},
	}

	cmd.Flags().StringVarP(&opts.policy, "policy", "p", "", "Output policy: rows, rows-sparse or columns (default from CONVERT_DEFAULT_POLICY)")
	cmd.Flags().BoolVar(&opts.noHeader, "no-header", false, "Treat the first row as data and name columns Column1, Column2, ...")
	cmd.Flags().BoolVar(&opts.indent, "indent", false, "Pretty-print the JSON document")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Write the document to this file instead of standard output")
	cmd.Flags().StringVar(&opts.name, "name", "", "File name used to detect the format of standard input")
	cmd.Flags().StringVar(&opts.endpoint, "endpoint", "", "Storage endpoint URL")
	cmd.Flags().StringVar(&opts.container, "container", "", "Storage container or bucket")
	cmd.Flags().StringVar(&opts.blob, "blob", "", "Object name for the uploaded document")

	return cmd
}

// runConvert converts one input and writes or uploads the document.
func runConvert(cmd *cobra.Command, path string, opts convertOptions, stdin io.Reader) error {
	name, data, err := readInput(path, opts.name, stdin)
	if err != nil {
		return err
	}

	svc, err := loadService(opts.upload())
	if err != nil {
		return err
	}

	req := core.ConvertRequest{
		FileName:  name,
		Data:      data,
		Policy:    opts.policy,
		HasHeader: !opts.noHeader,
		Indent:    opts.indent,
	}

	if opts.upload() {
		target := sink.Target{Endpoint: opts.endpoint, Container: opts.container, Object: opts.blob}
		res, err := svc.ConvertAndStore(cmd.Context(), req, target)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), res.Confirmation())
		return nil
	}

	res, err := svc.Convert(cmd.Context(), req)
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), opts.out, res.JSON)
}

// readInput returns the file name used for format detection and the bytes.
func readInput(path, name string, stdin io.Reader) (string, []byte, error) {
	if path == "-" {
		if name == "" {
			return "", nil, fmt.Errorf("%w: --name is required when reading standard input", core.ErrInvalidRequest)
		}
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", nil, fmt.Errorf("read standard input: %w", err)
		}
		return name, data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read %s: %w", path, err)
	}
	if name == "" {
		name = filepath.Base(path)
	}
	return name, data, nil
}

func writeOutput(stdout io.Writer, path string, doc []byte) error {
	if path == "" {
		if _, err := stdout.Write(doc); err != nil {
			return err
		}
		_, err := io.WriteString(stdout, "\n")
		return err
	}
	if err := os.WriteFile(path, doc, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// newService wires the CSV charset and, when requested, the sink.
func newService(cfg *config.Config, withSink bool) (*core.Service, error) {
	charset, err := table.LookupCharset(cfg.Convert.CSVCharset)
	if err != nil {
		return nil, err
	}

	var snk sink.Sink
	if withSink {
		if snk, err = sink.New(cfg.Sink); err != nil {
			return nil, err
		}
	}
	return core.NewService(snk, cfg, charset)
}
