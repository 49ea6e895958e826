package commands

import (
	"fmt"
	"io"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/rafaeljc/heimdall-sdk/internal/client"
	"github.com/rafaeljc/heimdall-sdk/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// OutputFormat specifies the output format for CLI commands.
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

type evalResult struct {
	Key            string `json:"key" yaml:"key"`
	Value          any    `json:"value" yaml:"value"`
	VariationID    string `json:"variation_id,omitempty" yaml:"variation_id,omitempty"`
	IsDefaultValue bool   `json:"is_default_value" yaml:"is_default_value"`
	Error          string `json:"error,omitempty" yaml:"error,omitempty"`
	EvaluationLog  string `json:"evaluation_log,omitempty" yaml:"evaluation_log,omitempty"`
}

func newResult(d client.Details[model.Value], withLog bool) evalResult {
	res := evalResult{
		Key:            d.Data.Key,
		Value:          d.Value.Any(),
		VariationID:    d.Data.VariationID,
		IsDefaultValue: d.Data.IsDefaultValue,
	}
	if d.Data.Error != nil {
		res.Error = d.Data.Error.Error()
	}
	if withLog {
		res.EvaluationLog = d.Data.EvaluationLog
	}
	return res
}

func printResults(w io.Writer, format OutputFormat, results []evalResult, withLog bool) error {
	switch format {
	case FormatJSON:
		return printJSON(w, map[string][]evalResult{"results": results})
	case FormatYAML:
		return printYAML(w, map[string][]evalResult{"results": results})
	case FormatTable:
		table := tablewriter.NewWriter(w)
		table.Header("Key", "Value", "Variation", "Default", "Error")
		for _, r := range results {
			if err := table.Append(r.Key, fmt.Sprint(r.Value), r.VariationID, strconv.FormatBool(r.IsDefaultValue), r.Error); err != nil {
				return err
			}
		}
		if err := table.Render(); err != nil {
			return err
		}
		if withLog {
			for _, r := range results {
				if r.EvaluationLog != "" {
					fmt.Fprintf(w, "\n%s\n", r.EvaluationLog)
				}
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func printKeys(w io.Writer, format OutputFormat, keys []string) error {
	if keys == nil {
		keys = []string{}
	}
	switch format {
	case FormatJSON:
		return printJSON(w, map[string][]string{"keys": keys})
	case FormatYAML:
		return printYAML(w, map[string][]string{"keys": keys})
	case FormatTable:
		for _, k := range keys {
			fmt.Fprintln(w, k)
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func printJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func printYAML(w io.Writer, data any) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(data)
}
