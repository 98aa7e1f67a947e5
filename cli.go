package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"tagpipe/config"
	"tagpipe/correction"
	"tagpipe/format"
	"tagpipe/logger"
	"tagpipe/parser"
	"tagpipe/types"
	"tagpipe/workspace"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// outputFlags are shared by commands that render a prompt
type outputFlags struct {
	format   string
	language string
	asJSON   bool
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.format, "format", "f", "", "output format (default from DEFAULT_FORMAT)")
	cmd.Flags().StringVarP(&o.language, "lang", "l", "", "surface form for natural/weighted: en or ja")
	cmd.Flags().BoolVar(&o.asJSON, "json", false, "print tags as JSON instead of a rendered prompt")
}

// resolve picks the format and serializer for this invocation
func (o *outputFlags) resolve(cfg *config.Config) (format.Format, *format.Serializer, error) {
	f := cfg.DefaultFormat
	if o.format != "" {
		parsed, err := format.ParseFormat(o.format)
		if err != nil {
			return 0, nil, err
		}
		f = parsed
	}

	opts := cfg.FormatOptions
	if o.language != "" {
		opts.Language = types.ParseLanguage(o.language)
	}
	return f, format.NewSerializer(opts), nil
}

func newTokenizeCmd() *cobra.Command {
	var out outputFlags
	cmd := &cobra.Command{
		Use:   "tokenize [text...]",
		Short: "Split prompt text into weighted tags and render it",
		Long: "Split prompt text into weighted tags. Text is taken from the arguments, " +
			"or from stdin when none are given. Groups like (tag:1.3) carry explicit weights.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, obsLogger, err := loadRuntime()
			if err != nil {
				return err
			}
			defer obsLogger.Close()

			text, err := argsOrStdin(cmd, args)
			if err != nil {
				return err
			}

			f, serializer, err := out.resolve(cfg)
			if err != nil {
				return err
			}

			tags := parser.TokensToTags(parser.Tokenize(text), uuid.NewString)
			if out.asJSON {
				return writeJSON(cmd.OutOrStdout(), types.Record{Pairs: tags})
			}
			rendered, err := serializer.Serialize(tags, f)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return nil
		},
	}
	out.register(cmd)
	return cmd
}

func newRepairCmd() *cobra.Command {
	var out outputFlags
	var input string
	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Recover validated tags from raw language model output",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, obsLogger, err := loadRuntime()
			if err != nil {
				return err
			}
			defer obsLogger.Close()

			raw, err := readInput(cmd, input)
			if err != nil {
				return err
			}

			f, serializer, err := out.resolve(cfg)
			if err != nil {
				return err
			}

			validator := correction.NewValidator(
				correction.WithLongEntryLimit(cfg.LongEntryLimit),
				correction.WithLogFunc(obsLogger.Event),
			)
			record, _, err := validator.Repair(raw)
			if err != nil {
				return err
			}

			if out.asJSON {
				return writeJSON(cmd.OutOrStdout(), record)
			}
			rendered, err := serializer.Serialize(record.Pairs, f)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return nil
		},
	}
	out.register(cmd)
	cmd.Flags().StringVarP(&input, "input", "i", "-", "file holding the model output, - for stdin")
	return cmd
}

func newSerializeCmd() *cobra.Command {
	var out outputFlags
	var input string
	var all bool
	cmd := &cobra.Command{
		Use:   "serialize",
		Short: "Render a JSON tag record ({\"pairs\": [...]}) for a target format",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, obsLogger, err := loadRuntime()
			if err != nil {
				return err
			}
			defer obsLogger.Close()

			raw, err := readInput(cmd, input)
			if err != nil {
				return err
			}

			// Hand-edited records go through the validator too so weights and ids hold
			validator := correction.NewValidator(
				correction.WithLongEntryLimit(cfg.LongEntryLimit),
				correction.WithLogFunc(obsLogger.Event),
			)
			record, _, err := validator.Repair(raw)
			if err != nil {
				return err
			}

			f, serializer, err := out.resolve(cfg)
			if err != nil {
				return err
			}

			if all {
				for _, target := range format.AllFormats {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", target, serializer.MustSerialize(record.Pairs, target))
				}
				return nil
			}
			rendered, err := serializer.Serialize(record.Pairs, f)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return nil
		},
	}
	out.register(cmd)
	cmd.Flags().StringVarP(&input, "input", "i", "-", "file holding the tag record, - for stdin")
	cmd.Flags().BoolVar(&all, "all", false, "render every supported format")
	return cmd
}

func newEditCmd() *cobra.Command {
	var out outputFlags
	var input string
	var removes, weights, categories, moves []string
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Apply tag edits (remove, weight, category, move) to a JSON tag record",
		Long: "Load a tag record, apply edits by tag id and print the result. Edits run in the " +
			"order remove, weight, category, move; each takes id=value except --remove.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, obsLogger, err := loadRuntime()
			if err != nil {
				return err
			}
			defer obsLogger.Close()

			raw, err := readInput(cmd, input)
			if err != nil {
				return err
			}

			f, serializer, err := out.resolve(cfg)
			if err != nil {
				return err
			}

			validator := correction.NewValidator(
				correction.WithLongEntryLimit(cfg.LongEntryLimit),
				correction.WithLogFunc(obsLogger.Event),
			)
			record, _, err := validator.Repair(raw)
			if err != nil {
				return err
			}

			ws := workspace.New()
			ws.Replace(record.Pairs)

			for _, id := range removes {
				if err := ws.Remove(id); err != nil {
					return err
				}
			}
			for _, assignment := range weights {
				id, value, err := splitAssignment(assignment)
				if err != nil {
					return err
				}
				w, err := strconv.ParseFloat(value, 64)
				if err != nil {
					return fmt.Errorf("weight for %s: %w", id, err)
				}
				if err := ws.SetWeight(id, w); err != nil {
					return err
				}
			}
			for _, assignment := range categories {
				id, value, err := splitAssignment(assignment)
				if err != nil {
					return err
				}
				c, ok := types.ParseCategory(value)
				if !ok {
					return fmt.Errorf("unknown category %q", value)
				}
				if err := ws.Recategorize(id, c); err != nil {
					return err
				}
			}
			for _, assignment := range moves {
				id, value, err := splitAssignment(assignment)
				if err != nil {
					return err
				}
				to, err := strconv.Atoi(value)
				if err != nil {
					return fmt.Errorf("position for %s: %w", id, err)
				}
				if err := ws.Move(id, to); err != nil {
					return err
				}
			}

			obsLogger.Info(logger.ComponentWorkspace, logger.CategoryTransformation, "", "Applied tag edits", map[string]interface{}{
				"tags":  ws.Len(),
				"edits": ws.UndoDepth() - 1,
			})

			tags := ws.Tags()
			if out.asJSON {
				return writeJSON(cmd.OutOrStdout(), types.Record{Pairs: tags})
			}
			rendered, err := serializer.Serialize(tags, f)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return nil
		},
	}
	out.register(cmd)
	cmd.Flags().StringVarP(&input, "input", "i", "-", "file holding the tag record, - for stdin")
	cmd.Flags().StringArrayVar(&removes, "remove", nil, "tag id to remove (repeatable)")
	cmd.Flags().StringArrayVar(&weights, "weight", nil, "id=weight, clamped to [0.1, 2.0] (repeatable)")
	cmd.Flags().StringArrayVar(&categories, "category", nil, "id=category (repeatable)")
	cmd.Flags().StringArrayVar(&moves, "move", nil, "id=position, zero-based (repeatable)")
	return cmd
}

// splitAssignment parses an "id=value" flag argument
func splitAssignment(s string) (string, string, error) {
	id, value, ok := strings.Cut(s, "=")
	id, value = strings.TrimSpace(id), strings.TrimSpace(value)
	if !ok || id == "" || value == "" {
		return "", "", fmt.Errorf("expected id=value, got %q", s)
	}
	return id, value, nil
}

func newFormatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List supported output formats",
		Run: func(cmd *cobra.Command, args []string) {
			for _, f := range format.AllFormats {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
		},
	}
}

func argsOrStdin(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	return readInput(cmd, "-")
}

func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
