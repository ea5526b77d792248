package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"go.yaml.in/yaml/v3"

	"github.com/iaptsiauri/pit/pkg/models"
)

// Output formats accepted by -o.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// printStatus prints a message with a colored symbol prefix.
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}

func printOK(format string, args ...any) {
	printStatus("✓", fmt.Sprintf(format, args...), color.FgGreen)
}

func printWarn(format string, args ...any) {
	printStatus("⚠", fmt.Sprintf(format, args...), color.FgYellow)
}

func printError(err error) {
	c := color.New(color.FgRed)
	fmt.Fprintf(os.Stderr, "%s %v\n", c.Sprint("✗"), err)
}

// statusColor picks the color of a task status.
func statusColor(s models.TaskStatus) *color.Color {
	switch s {
	case models.TaskStatusRunning:
		return color.New(color.FgGreen)
	case models.TaskStatusDone:
		return color.New(color.FgBlue)
	default:
		return color.New(color.FgWhite)
	}
}

// writeStructured encodes v as JSON or YAML.
func writeStructured(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}

// writeTasks renders tasks in the requested format.
func writeTasks(w io.Writer, format string, tasks []models.Task, now time.Time) error {
	if format != formatTable {
		if tasks == nil {
			tasks = []models.Task{}
		}
		return writeStructured(w, format, tasks)
	}

	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks. Create one with: pit new <name> -p \"<prompt>\"")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTATUS\tAGENT\tAGE\tISSUE")
	for _, t := range tasks {
		issue := t.IssueTitle
		if issue == "" {
			issue = t.IssueRef
		}
		// Pad before coloring; every status color has the same escape length
		// so tabwriter still lines the columns up.
		status := statusColor(t.Status).Sprint(fmt.Sprintf("%-8s", t.Status))
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t.Name, status, t.Agent, t.Age(now), issue)
	}
	return tw.Flush()
}

// confirm asks a yes/no question and defaults to no.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N] ", question)
	response, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes", nil
}
