package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/c360studio/semtag/vocabulary"
)

func vocabCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vocab",
		Short: "Inspect the vocabulary hierarchy",
	}
	cmd.AddCommand(vocabLabelsCmd(flags))
	cmd.AddCommand(vocabLookupCmd(flags))
	return cmd
}

func loadHierarchy(flags *rootFlags) (*vocabulary.Hierarchy, error) {
	cfg, err := loadAppConfig(flags)
	if err != nil {
		return nil, err
	}
	return vocabulary.Load(cfg.Vocabulary.Path)
}

func vocabLabelsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "labels",
		Short: "Print the deduplicated label index in hierarchy order",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := loadHierarchy(flags)
			if err != nil {
				return err
			}
			for _, label := range h.LabelIndex() {
				fmt.Fprintln(cmd.OutOrStdout(), label)
			}
			return nil
		},
	}
}

func vocabLookupCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <vocabulary-id>",
		Short: "Resolve a vocabulary id to its category path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := loadHierarchy(flags)
			if err != nil {
				return err
			}
			path := h.Lookup(args[0])
			if path == (vocabulary.Path{}) {
				return fmt.Errorf("unknown vocabulary id %q", args[0])
			}
			out, err := json.MarshalIndent(path, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
