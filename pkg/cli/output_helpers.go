package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"taotie/internal/render"
	"taotie/internal/session"
)

// outputFormat is a pflag.Value restricted to table and json.
type outputFormat string

const (
	formatTable outputFormat = "table"
	formatJSON  outputFormat = "json"
)

var _ pflag.Value = (*outputFormat)(nil)

func (o *outputFormat) String() string { return string(*o) }

func (o *outputFormat) Set(v string) error {
	if err := validateOutputFormat(v); err != nil {
		return err
	}
	*o = outputFormat(v)
	return nil
}

func (o *outputFormat) Type() string { return "format" }

func validateOutputFormat(output string) error {
	if output != string(formatTable) && output != string(formatJSON) {
		return fmt.Errorf("unsupported output format %q: use 'table' or 'json'", output)
	}
	return nil
}

// writeReply prints a command reply in the given format.
func writeReply(w io.Writer, reply session.Reply, format outputFormat) error {
	if format == formatJSON {
		if reply.Table != nil {
			return render.JSON(w, reply.Table)
		}
		return printJSON(w, map[string]string{"message": reply.Message})
	}

	if reply.Message != "" {
		if _, err := fmt.Fprintln(w, reply.Message); err != nil {
			return err
		}
	}
	if reply.Table != nil {
		if _, err := fmt.Fprintln(w, render.Format(reply.Table)); err != nil {
			return err
		}
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
