package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/snarg/contentgen/internal/prompts"
)

func newModifiersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "modifiers",
		Aliases: []string{"mod"},
		Short:   "List and edit prompt modifiers",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List modifiers in sequence order",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				mods, err := a.modifiers.Modifiers(cmd.Context())
				if err != nil {
					return err
				}
				printModifiers(cmd.OutOrStdout(), mods)
				return nil
			},
		},
		newModifierAddCmd(a),
		newModifierEditCmd(a),
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a modifier",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				if err := a.modifiers.DeleteModifier(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted modifier %d\n", id)
				return nil
			},
		},
		&cobra.Command{
			Use:   "toggle <id>",
			Short: "Flip a modifier between active and inactive",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				p, err := a.modifiers.ToggleModifier(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", p.Name, p.Status)
				return nil
			},
		},
		&cobra.Command{
			Use:   "sequence <id> <position>",
			Short: "Move a modifier to a new position",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				mods, err := a.modifiers.Modifiers(cmd.Context())
				if err != nil {
					return err
				}
				seq, err := prompts.ParseSequence(args[1], len(mods))
				if err != nil {
					return err
				}
				ordered, err := a.modifiers.SetSequence(cmd.Context(), []prompts.Assignment{{ID: id, Sequence: seq}})
				if err != nil {
					return err
				}
				printModifiers(cmd.OutOrStdout(), ordered)
				return nil
			},
		},
	)
	return cmd
}

func newModifierAddCmd(a *app) *cobra.Command {
	var description, content string
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add an active modifier at the end of the sequence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.modifiers.AddModifier(cmd.Context(), args[0], description, content)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s at position %d\n", p.Name, p.Sequence)
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "Short description")
	cmd.Flags().StringVarP(&content, "content", "c", "", "Modifier prompt text")
	return cmd
}

func newModifierEditCmd(a *app) *cobra.Command {
	var description, content string
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Replace a modifier's content and description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			p, err := a.modifiers.EditModifier(cmd.Context(), id, content, description)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", p.Name)
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "Short description")
	cmd.Flags().StringVarP(&content, "content", "c", "", "Modifier prompt text")
	return cmd
}

func newCorePromptCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "core-prompt",
		Short: "Show or replace the core system prompt",
	}
	var description string
	set := &cobra.Command{
		Use:   "set <content>",
		Short: "Replace the core system prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("description") {
				core, err := a.modifiers.CorePrompt(cmd.Context())
				if err != nil {
					return err
				}
				description = core.Description
			}
			if _, err := a.modifiers.UpdateCorePrompt(cmd.Context(), args[0], description); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "core prompt updated")
			return nil
		},
	}
	set.Flags().StringVarP(&description, "description", "d", "", "Short description (kept when omitted)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the core system prompt",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				core, err := a.modifiers.CorePrompt(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), core.Content)
				return nil
			},
		},
		set,
	)
	return cmd
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid modifier id %q", s)
	}
	return id, nil
}

func printModifiers(w io.Writer, mods []prompts.Prompt) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tID\tNAME\tSTATUS\tDESCRIPTION")
	for _, m := range mods {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\n", m.Sequence, m.ID, m.Name, m.Status, m.Description)
	}
	tw.Flush()
}
